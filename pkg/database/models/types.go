package models

// Status values shared by devices and virtual machines
const (
	StatusActive  = "active"
	StatusOffline = "offline"
)

// Object type identifiers used for generic (type, id) assignments such as
// MAC/IP bindings, cable terminations and tag/custom field scoping.
const (
	ObjectTypeVirtualMachine = "virtualization.virtualmachine"
	ObjectTypeVMInterface    = "virtualization.vminterface"
	ObjectTypeInterface      = "dcim.interface"
	ObjectTypeTag            = "extras.tag"
	ObjectTypeDevice         = "dcim.device"
)

// Interface types
const (
	InterfaceTypeBridge  = "bridge"
	InterfaceTypeVirtual = "virtual"
	InterfaceTypeLAG     = "lag"
	InterfaceTypeOther   = "other"
)

// Interface 802.1Q modes
const (
	InterfaceModeAccess = "access"
)

// Cable ends
const (
	CableEndA = "A"
	CableEndB = "B"
)

// RecordSummary is the serialized shape of a created, updated or deleted record
type RecordSummary struct {
	ID    uint   `json:"pk"`
	Model string `json:"model"`
	Name  string `json:"name"`
}
