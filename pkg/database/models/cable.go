package models

import "time"

// Cable connects two terminations. The sync only creates cables between a
// VM interface (A end) and a tap interface on the hosting device (B end).
type Cable struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Status    string    `gorm:"size:50" json:"status"`
	Label     string    `gorm:"size:100" json:"label"`
	CreatedAt time.Time `json:"created"`
	UpdatedAt time.Time `json:"last_updated"`

	Terminations []CableTermination `gorm:"foreignKey:CableID" json:"terminations,omitempty"`
}

// Connects reports whether the cable terminates on both given objects
func (c *Cable) Connects(aType string, aID uint, bType string, bID uint) bool {
	var hasA, hasB bool
	for _, t := range c.Terminations {
		if t.TerminationType == aType && t.TerminationID == aID {
			hasA = true
		}
		if t.TerminationType == bType && t.TerminationID == bID {
			hasB = true
		}
	}
	return hasA && hasB
}

// CableTermination is one end of a cable
type CableTermination struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	CableID         uint      `gorm:"not null;index" json:"cable_id"`
	CableEnd        string    `gorm:"not null;size:1" json:"cable_end"`
	TerminationType string    `gorm:"not null;size:100;uniqueIndex:idx_termination_object" json:"termination_type"`
	TerminationID   uint      `gorm:"not null;uniqueIndex:idx_termination_object" json:"termination_id"`
	CreatedAt       time.Time `json:"created"`
}
