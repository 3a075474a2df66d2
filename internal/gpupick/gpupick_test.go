package gpupick

import (
	"strings"
	"testing"

	"github.com/goki/vulkan"
)

func TestSuitable(t *testing.T) {
	cases := []struct {
		deviceType vulkan.PhysicalDeviceType
		want       bool
	}{
		{vulkan.PhysicalDeviceTypeDiscreteGpu, true},
		{vulkan.PhysicalDeviceTypeIntegratedGpu, true},
		{vulkan.PhysicalDeviceTypeVirtualGpu, false},
		{vulkan.PhysicalDeviceTypeCpu, false},
		{vulkan.PhysicalDeviceTypeOther, false},
	}
	for _, c := range cases {
		if got := Suitable(c.deviceType); got != c.want {
			t.Errorf("Suitable(%s) = %v, want %v", TypeString(c.deviceType), got, c.want)
		}
	}
}

func TestTypeString(t *testing.T) {
	if got := TypeString(vulkan.PhysicalDeviceTypeCpu); got != "CPU" {
		t.Errorf("TypeString(cpu) = %q", got)
	}
	if got := TypeString(vulkan.PhysicalDeviceType(99)); got != "Unknown" {
		t.Errorf("TypeString(99) = %q", got)
	}
}

func family(flags vulkan.QueueFlagBits) vulkan.QueueFamilyProperties {
	return vulkan.QueueFamilyProperties{QueueFlags: vulkan.QueueFlags(flags)}
}

func TestFindQueueFamily(t *testing.T) {
	families := []vulkan.QueueFamilyProperties{
		family(vulkan.QueueComputeBit | vulkan.QueueTransferBit),
		family(vulkan.QueueTransferBit),
		family(vulkan.QueueGraphicsBit | vulkan.QueueComputeBit | vulkan.QueueTransferBit),
		family(vulkan.QueueGraphicsBit | vulkan.QueueTransferBit),
	}

	idx, ok := FindQueueFamily(families, RequiredQueueFlags)
	if !ok {
		t.Fatal("no family found")
	}
	if idx != 2 {
		t.Errorf("picked family %d, want first match 2", idx)
	}

	idx, ok = FindQueueFamily(families, vulkan.QueueFlags(vulkan.QueueTransferBit))
	if !ok || idx != 0 {
		t.Errorf("transfer-only pick = (%d, %v), want (0, true)", idx, ok)
	}

	if _, ok := FindQueueFamily(families[:2], RequiredQueueFlags); ok {
		t.Error("found graphics family among compute/transfer-only families")
	}
	if _, ok := FindQueueFamily(nil, RequiredQueueFlags); ok {
		t.Error("found family in empty list")
	}
}

func TestQueueFlagsString(t *testing.T) {
	s := QueueFlagsString(RequiredQueueFlags)
	if !strings.Contains(s, "GRAPHICS") || !strings.Contains(s, "TRANSFER") {
		t.Errorf("QueueFlagsString(required) = %q", s)
	}
	if strings.Contains(s, "COMPUTE") {
		t.Errorf("QueueFlagsString(required) = %q lists COMPUTE", s)
	}
	if got := QueueFlagsString(0); !strings.HasPrefix(got, "NONE") {
		t.Errorf("QueueFlagsString(0) = %q", got)
	}
}
