// Package applier writes categorized reconcile plans to the record store.
// Items are applied one by one; a failed item is reported in the batch
// result and never stops its siblings.
package applier

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/proxsync/proxsync/pkg/database/models"
	"github.com/proxsync/proxsync/pkg/database/repositories"
	"github.com/proxsync/proxsync/pkg/log"
)

type TagStore interface {
	Create(ctx context.Context, tag *models.Tag) error
	Update(ctx context.Context, tag *models.Tag) error
	Delete(ctx context.Context, id uint) error
}

type DeviceStore interface {
	GetByID(ctx context.Context, id uint) (*models.Device, error)
	FindByName(ctx context.Context, name string) (*models.Device, error)
	FindByNameFold(ctx context.Context, name string) (*models.Device, error)
	Create(ctx context.Context, device *models.Device) error
	Update(ctx context.Context, device *models.Device) error
	EnsureBaseline(ctx context.Context) (*repositories.DeviceBaseline, error)
	EnsureInterface(ctx context.Context, deviceID uint, name, ifType string) (*models.Interface, error)
	SetInterfaceBridge(ctx context.Context, iface *models.Interface, bridgeID uint) error
}

type VirtualMachineStore interface {
	Create(ctx context.Context, vm *models.VirtualMachine) error
	Update(ctx context.Context, vm *models.VirtualMachine) error
	ReplaceTags(ctx context.Context, vm *models.VirtualMachine, tags []models.Tag) error
	Delete(ctx context.Context, id uint) error
}

type VMInterfaceStore interface {
	Create(ctx context.Context, iface *models.VMInterface) error
	Update(ctx context.Context, iface *models.VMInterface) error
	Delete(ctx context.Context, id uint) error
	AssignMAC(ctx context.Context, ifaceID uint, address string) (*models.MACAddress, error)
	ClearMACs(ctx context.Context, ifaceID, keepID uint) error
	ListIPs(ctx context.Context, ifaceID uint) ([]models.IPAddress, error)
	AssignIP(ctx context.Context, ifaceID uint, address string) (*models.IPAddress, error)
	UnassignIP(ctx context.Context, ifaceID uint, address string) error
}

type CableStore interface {
	FindByTermination(ctx context.Context, objectType string, objectID uint) (*models.Cable, error)
	Connect(ctx context.Context, aType string, aID uint, bType string, bID uint) (*models.Cable, error)
	Delete(ctx context.Context, id uint) error
}

// Stores groups the record store access the applier needs
type Stores struct {
	Tags            TagStore
	Devices         DeviceStore
	VirtualMachines VirtualMachineStore
	VMInterfaces    VMInterfaceStore
	Cables          CableStore
}

// NewStores wires the gorm repositories
func NewStores(db *gorm.DB) Stores {
	return Stores{
		Tags:            repositories.NewTagRepository(db),
		Devices:         repositories.NewDeviceRepository(db),
		VirtualMachines: repositories.NewVirtualMachineRepository(db),
		VMInterfaces:    repositories.NewVMInterfaceRepository(db),
		Cables:          repositories.NewCableRepository(db),
	}
}

// Result is the outcome of applying one batch
type Result struct {
	Created  []models.RecordSummary `json:"created"`
	Updated  []models.RecordSummary `json:"updated"`
	Deleted  []models.RecordSummary `json:"deleted"`
	Errors   []string               `json:"errors"`
	Warnings []string               `json:"warnings"`
}

func newResult(warnings []string) *Result {
	if warnings == nil {
		warnings = []string{}
	}
	return &Result{
		Created:  []models.RecordSummary{},
		Updated:  []models.RecordSummary{},
		Deleted:  []models.RecordSummary{},
		Errors:   []string{},
		Warnings: warnings,
	}
}

func (r *Result) fail(logger zerolog.Logger, err error, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	logger.Error().Err(err).Msg(msg)
	r.Errors = append(r.Errors, fmt.Sprintf("%s: %v", msg, err))
}

type Applier struct {
	stores Stores
	logger zerolog.Logger
}

func New(stores Stores) *Applier {
	return &Applier{
		stores: stores,
		logger: log.WithComponent("applier"),
	}
}

// WithLogger returns a copy of the applier logging through logger
func (a *Applier) WithLogger(logger zerolog.Logger) *Applier {
	return &Applier{stores: a.stores, logger: logger}
}

// isGone reports whether a delete failed only because the record was already removed
func isGone(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
