package models

import (
	"fmt"
	"time"
)

// Cluster is a virtualization cluster. Devices, virtual machines and
// connections are scoped to one cluster.
type Cluster struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"uniqueIndex;not null;size:255" json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Connection holds the API credentials used to reach one Proxmox VE cluster
type Connection struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ClusterID   uint      `gorm:"not null;uniqueIndex" json:"cluster_id"`
	Host        string    `gorm:"not null;size:255" json:"domain"`
	Port        int       `gorm:"not null;default:8006" json:"port"`
	User        string    `gorm:"not null;size:255" json:"user"`
	TokenID     string    `gorm:"not null;size:255" json:"token_id"`
	TokenSecret string    `gorm:"not null" json:"-"`
	VerifySSL   bool      `gorm:"not null" json:"verify_ssl"`
	CreatedAt   time.Time `json:"created"`
	UpdatedAt   time.Time `json:"last_updated"`

	// Relationships
	Cluster *Cluster `gorm:"foreignKey:ClusterID" json:"cluster,omitempty"`
}

func (c *Connection) String() string {
	if c.Cluster != nil {
		return fmt.Sprintf("%s (%s:%d)", c.Cluster.Name, c.Host, c.Port)
	}
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
