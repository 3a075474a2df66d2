// Package gpupick holds the physical device and queue family selection
// policy shared by the walkthrough programs.
package gpupick

import (
	"fmt"

	"github.com/goki/vulkan"
)

// RequiredQueueFlags is the capability mask a queue family must carry to run
// the walkthrough: graphics commands for the draw, transfer commands for the
// image-to-buffer copy.
const RequiredQueueFlags = vulkan.QueueFlags(vulkan.QueueGraphicsBit) | vulkan.QueueFlags(vulkan.QueueTransferBit)

// Suitable reports whether the device type is a discrete or integrated GPU.
// Software implementations such as Lavapipe report themselves as CPU devices
// and are skipped.
func Suitable(deviceType vulkan.PhysicalDeviceType) bool {
	return deviceType == vulkan.PhysicalDeviceTypeDiscreteGpu ||
		deviceType == vulkan.PhysicalDeviceTypeIntegratedGpu
}

// TypeString returns a human readable name for a physical device type.
func TypeString(deviceType vulkan.PhysicalDeviceType) string {
	switch deviceType {
	case vulkan.PhysicalDeviceTypeIntegratedGpu:
		return "Integrated GPU"
	case vulkan.PhysicalDeviceTypeDiscreteGpu:
		return "Discrete GPU"
	case vulkan.PhysicalDeviceTypeVirtualGpu:
		return "Virtual GPU"
	case vulkan.PhysicalDeviceTypeCpu:
		return "CPU"
	case vulkan.PhysicalDeviceTypeOther:
		return "Other"
	default:
		return "Unknown"
	}
}

// FindQueueFamily returns the index of the first family whose flags contain
// every bit in required. The family properties must already be dereferenced.
func FindQueueFamily(families []vulkan.QueueFamilyProperties, required vulkan.QueueFlags) (uint32, bool) {
	for i := range families {
		if families[i].QueueFlags&required == required {
			return uint32(i), true
		}
	}
	return 0, false
}

// QueueFlagsString formats a queue capability mask for log and table output.
func QueueFlagsString(flags vulkan.QueueFlags) string {
	s := ""
	if flags&vulkan.QueueFlags(vulkan.QueueGraphicsBit) != 0 {
		s += "GRAPHICS|"
	}
	if flags&vulkan.QueueFlags(vulkan.QueueComputeBit) != 0 {
		s += "COMPUTE|"
	}
	if flags&vulkan.QueueFlags(vulkan.QueueTransferBit) != 0 {
		s += "TRANSFER|"
	}
	if flags&vulkan.QueueFlags(vulkan.QueueSparseBindingBit) != 0 {
		s += "SPARSE_BINDING|"
	}
	if flags&vulkan.QueueFlags(vulkan.QueueProtectedBit) != 0 {
		s += "PROTECTED|"
	}
	if len(s) > 0 {
		s = s[:len(s)-1]
	} else {
		s = "NONE"
	}
	return fmt.Sprintf("%s (0x%x)", s, uint32(flags))
}
