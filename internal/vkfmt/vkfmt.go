// Package vkfmt names Vulkan enum values and sizes depth formats for the
// walkthrough programs. The registry spelling is kept so output lines up
// with vulkaninfo and the validation layers.
package vkfmt

import (
	"github.com/goki/vulkan"
)

// ResultString returns the registry name for a status code, or "UNKNOWN".
func ResultString(code vulkan.Result) string {
	switch code {
	case vulkan.Success:
		return "VK_SUCCESS"
	case vulkan.NotReady:
		return "VK_NOT_READY"
	case vulkan.Timeout:
		return "VK_TIMEOUT"
	case vulkan.EventSet:
		return "VK_EVENT_SET"
	case vulkan.EventReset:
		return "VK_EVENT_RESET"
	case vulkan.Incomplete:
		return "VK_INCOMPLETE"
	case vulkan.ErrorOutOfHostMemory:
		return "VK_ERROR_OUT_OF_HOST_MEMORY"
	case vulkan.ErrorOutOfDeviceMemory:
		return "VK_ERROR_OUT_OF_DEVICE_MEMORY"
	case vulkan.ErrorInitializationFailed:
		return "VK_ERROR_INITIALIZATION_FAILED"
	case vulkan.ErrorDeviceLost:
		return "VK_ERROR_DEVICE_LOST"
	case vulkan.ErrorMemoryMapFailed:
		return "VK_ERROR_MEMORY_MAP_FAILED"
	case vulkan.ErrorLayerNotPresent:
		return "VK_ERROR_LAYER_NOT_PRESENT"
	case vulkan.ErrorExtensionNotPresent:
		return "VK_ERROR_EXTENSION_NOT_PRESENT"
	case vulkan.ErrorFeatureNotPresent:
		return "VK_ERROR_FEATURE_NOT_PRESENT"
	case vulkan.ErrorIncompatibleDriver:
		return "VK_ERROR_INCOMPATIBLE_DRIVER"
	case vulkan.ErrorTooManyObjects:
		return "VK_ERROR_TOO_MANY_OBJECTS"
	case vulkan.ErrorFormatNotSupported:
		return "VK_ERROR_FORMAT_NOT_SUPPORTED"
	case vulkan.ErrorFragmentedPool:
		return "VK_ERROR_FRAGMENTED_POOL"
	case vulkan.ErrorOutOfPoolMemory:
		return "VK_ERROR_OUT_OF_POOL_MEMORY"
	case vulkan.ErrorInvalidExternalHandle:
		return "VK_ERROR_INVALID_EXTERNAL_HANDLE"
	default:
		return "UNKNOWN"
	}
}

// FormatString returns the registry name for a depth/stencil format, or "UNKNOWN".
func FormatString(format vulkan.Format) string {
	switch format {
	case vulkan.FormatD16Unorm:
		return "VK_FORMAT_D16_UNORM"
	case vulkan.FormatD16UnormS8Uint:
		return "VK_FORMAT_D16_UNORM_S8_UINT"
	case vulkan.FormatD24UnormS8Uint:
		return "VK_FORMAT_D24_UNORM_S8_UINT"
	case vulkan.FormatD32Sfloat:
		return "VK_FORMAT_D32_SFLOAT"
	case vulkan.FormatD32SfloatS8Uint:
		return "VK_FORMAT_D32_SFLOAT_S8_UINT"
	default:
		return "UNKNOWN"
	}
}

// FormatSize returns the byte size of one texel in the given depth/stencil
// format, or 0 for formats the walkthrough does not handle. Sizes follow the
// packed texel block sizes from the format chapter of the Vulkan spec.
func FormatSize(format vulkan.Format) uint32 {
	switch format {
	case vulkan.FormatD16Unorm:
		return 2
	case vulkan.FormatD16UnormS8Uint:
		return 3
	case vulkan.FormatD24UnormS8Uint:
		return 4
	case vulkan.FormatD32Sfloat:
		return 4
	case vulkan.FormatD32SfloatS8Uint:
		return 5
	default:
		return 0
	}
}
