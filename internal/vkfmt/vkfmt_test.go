package vkfmt

import (
	"testing"

	"github.com/goki/vulkan"
)

func TestResultString(t *testing.T) {
	cases := []struct {
		code vulkan.Result
		want string
	}{
		{vulkan.Success, "VK_SUCCESS"},
		{vulkan.Timeout, "VK_TIMEOUT"},
		{vulkan.Incomplete, "VK_INCOMPLETE"},
		{vulkan.ErrorOutOfHostMemory, "VK_ERROR_OUT_OF_HOST_MEMORY"},
		{vulkan.ErrorDeviceLost, "VK_ERROR_DEVICE_LOST"},
		{vulkan.ErrorLayerNotPresent, "VK_ERROR_LAYER_NOT_PRESENT"},
		{vulkan.ErrorFragmentedPool, "VK_ERROR_FRAGMENTED_POOL"},
		{vulkan.Result(-12345), "UNKNOWN"},
	}
	for _, c := range cases {
		if got := ResultString(c.code); got != c.want {
			t.Errorf("ResultString(%d) = %q, want %q", c.code, got, c.want)
		}
	}
}

func TestFormatString(t *testing.T) {
	cases := []struct {
		format vulkan.Format
		want   string
	}{
		{vulkan.FormatD16Unorm, "VK_FORMAT_D16_UNORM"},
		{vulkan.FormatD24UnormS8Uint, "VK_FORMAT_D24_UNORM_S8_UINT"},
		{vulkan.FormatD32SfloatS8Uint, "VK_FORMAT_D32_SFLOAT_S8_UINT"},
		{vulkan.FormatR8g8b8a8Unorm, "UNKNOWN"},
	}
	for _, c := range cases {
		if got := FormatString(c.format); got != c.want {
			t.Errorf("FormatString(%d) = %q, want %q", c.format, got, c.want)
		}
	}
}

func TestFormatSize(t *testing.T) {
	cases := []struct {
		format vulkan.Format
		want   uint32
	}{
		{vulkan.FormatD16Unorm, 2},
		{vulkan.FormatD16UnormS8Uint, 3},
		{vulkan.FormatD24UnormS8Uint, 4},
		{vulkan.FormatD32Sfloat, 4},
		{vulkan.FormatD32SfloatS8Uint, 5},
		{vulkan.FormatR8g8b8a8Unorm, 0},
		{vulkan.FormatUndefined, 0},
	}
	for _, c := range cases {
		if got := FormatSize(c.format); got != c.want {
			t.Errorf("FormatSize(%s) = %d, want %d", FormatString(c.format), got, c.want)
		}
	}
}
