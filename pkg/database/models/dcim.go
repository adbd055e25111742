package models

import "time"

// Site is the physical location devices are placed in
type Site struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;not null;size:100" json:"name"`
	Slug      string    `gorm:"uniqueIndex;not null;size:100" json:"slug"`
	Status    string    `gorm:"size:50" json:"status"`
	CreatedAt time.Time `json:"created"`
	UpdatedAt time.Time `json:"last_updated"`
}

// Manufacturer of a device type
type Manufacturer struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;not null;size:100" json:"name"`
	Slug      string    `gorm:"uniqueIndex;not null;size:100" json:"slug"`
	CreatedAt time.Time `json:"created"`
	UpdatedAt time.Time `json:"last_updated"`
}

// DeviceType is the hardware model of a device
type DeviceType struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ManufacturerID uint      `gorm:"not null;index" json:"manufacturer_id"`
	Model          string    `gorm:"not null;size:100" json:"model"`
	Slug           string    `gorm:"uniqueIndex;not null;size:100" json:"slug"`
	CreatedAt      time.Time `json:"created"`
	UpdatedAt      time.Time `json:"last_updated"`

	Manufacturer *Manufacturer `gorm:"foreignKey:ManufacturerID" json:"manufacturer,omitempty"`
}

// DeviceRole describes the function of a device
type DeviceRole struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;not null;size:100" json:"name"`
	Slug      string    `gorm:"uniqueIndex;not null;size:100" json:"slug"`
	Color     string    `gorm:"size:6" json:"color"`
	VMRole    bool      `gorm:"not null;default:false" json:"vm_role"`
	CreatedAt time.Time `json:"created"`
	UpdatedAt time.Time `json:"last_updated"`
}

// Device is a physical host. Hypervisor nodes are recorded as devices
// assigned to their virtualization cluster.
type Device struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"not null;size:64;index" json:"name"`
	Status       string    `gorm:"not null;size:50" json:"status"`
	ClusterID    *uint     `gorm:"index" json:"cluster_id"`
	SiteID       uint      `gorm:"not null" json:"site_id"`
	DeviceTypeID uint      `gorm:"not null" json:"device_type_id"`
	RoleID       uint      `gorm:"not null" json:"role_id"`
	CreatedAt    time.Time `json:"created"`
	UpdatedAt    time.Time `json:"last_updated"`

	// Relationships
	Interfaces []Interface `gorm:"foreignKey:DeviceID" json:"interfaces,omitempty"`
}

// Summary returns the serialized summary of the device
func (d *Device) Summary() RecordSummary {
	return RecordSummary{ID: d.ID, Model: ObjectTypeDevice, Name: d.Name}
}

// HasInterface reports whether the device has an interface with the given name
func (d *Device) HasInterface(name string) bool {
	for _, iface := range d.Interfaces {
		if iface.Name == name {
			return true
		}
	}
	return false
}

// Interface is a physical or virtual port of a device. Bridge members point
// at their bridge through BridgeID.
type Interface struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	DeviceID    uint      `gorm:"not null;uniqueIndex:idx_interface_device_name" json:"device_id"`
	Name        string    `gorm:"not null;size:64;uniqueIndex:idx_interface_device_name" json:"name"`
	Type        string    `gorm:"not null;size:50" json:"type"`
	Description string    `gorm:"size:200" json:"description"`
	BridgeID    *uint     `json:"bridge_id"`
	CableID     *uint     `gorm:"index" json:"cable_id"`
	CreatedAt   time.Time `json:"created"`
	UpdatedAt   time.Time `json:"last_updated"`
}
