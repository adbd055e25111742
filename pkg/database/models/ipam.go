package models

import "time"

// VLAN is referenced by VID. VLANs are maintained outside of the sync.
type VLAN struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	VID       int       `gorm:"not null;index" json:"vid"`
	Name      string    `gorm:"not null;size:64" json:"name"`
	Status    string    `gorm:"size:50" json:"status"`
	CreatedAt time.Time `json:"created"`
	UpdatedAt time.Time `json:"last_updated"`
}

// IPAddress is a global IP record, optionally assigned to an interface
type IPAddress struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	Address            string    `gorm:"uniqueIndex;not null;size:64" json:"address"`
	Status             string    `gorm:"size:50" json:"status"`
	AssignedObjectType *string   `gorm:"size:100;index:idx_ip_assigned" json:"assigned_object_type"`
	AssignedObjectID   *uint     `gorm:"index:idx_ip_assigned" json:"assigned_object_id"`
	CreatedAt          time.Time `json:"created"`
	UpdatedAt          time.Time `json:"last_updated"`
}

// MACAddress is a global MAC record, assigned to at most one interface
type MACAddress struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	MACAddress         string    `gorm:"column:mac_address;uniqueIndex;not null;size:17" json:"mac_address"`
	AssignedObjectType *string   `gorm:"size:100;index:idx_mac_assigned" json:"assigned_object_type"`
	AssignedObjectID   *uint     `gorm:"index:idx_mac_assigned" json:"assigned_object_id"`
	CreatedAt          time.Time `json:"created"`
	UpdatedAt          time.Time `json:"last_updated"`
}
