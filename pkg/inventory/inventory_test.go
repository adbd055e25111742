package inventory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVMInterfaceSlot(t *testing.T) {
	assert.Equal(t, "net0", VMInterface{Name: "web1:net0"}.Slot())
	assert.Equal(t, "net3", VMInterface{Name: "odd:name:net3"}.Slot())
	assert.Equal(t, "", VMInterface{Name: "eth0"}.Slot())
}
