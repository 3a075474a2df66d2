// The first program of the walkthrough: bring Vulkan up and tear it down
// again. It loads the API entry points, creates an instance, picks a physical
// device with a queue family that can do graphics and transfer work, creates
// a logical device with one queue, and destroys everything in reverse order.
// Nothing is rendered yet; the point is the object hierarchy and the create /
// destroy discipline every later program builds on.
package main

import (
	"log"
	"os"

	"github.com/cdeln/vulkan-intro/internal/gpupick"
	"github.com/cdeln/vulkan-intro/internal/vkfmt"
	"github.com/goki/vulkan"
)

// The Khronos validation layer checks every call for conformance against the
// API. It costs performance, so it is an opt-out: set VK_VALIDATION=0 to run
// without it.
const validationLayer = "VK_LAYER_KHRONOS_validation"

func main() {
	// The loader resolves Vulkan entry points at runtime. Without a window
	// system handing us a loader, ask for the system default (libvulkan).
	if err := vulkan.SetDefaultGetInstanceProcAddr(); err != nil {
		log.Fatalf("locate vulkan loader: %v", err)
	}
	if err := vulkan.Init(); err != nil {
		log.Fatalf("vulkan init: %v", err)
	}

	enableValidation := validationEnabled()
	if enableValidation && !validationLayerSupported() {
		log.Fatalf("validation layer %s not available, set VK_VALIDATION=0 to run without it", validationLayer)
	}

	// The instance is the top of the object hierarchy. Every opaque Vulkan
	// object follows the same lifetime pattern: fill in a CreateInfo struct,
	// create the object, destroy it when it is no longer needed, usually in
	// reverse order of creation. The SType field must always name the
	// struct's own type; drivers dispatch on it and getting it wrong is
	// undefined behaviour, though the validation layer will catch it.
	log.Printf("creating instance (validation: %v)", enableValidation)
	appInfo := vulkan.ApplicationInfo{
		SType:      vulkan.StructureTypeApplicationInfo,
		ApiVersion: vulkan.MakeVersion(1, 0, 0),
	}
	instanceCreateInfo := vulkan.InstanceCreateInfo{
		SType:            vulkan.StructureTypeInstanceCreateInfo,
		PApplicationInfo: &appInfo,
	}
	if enableValidation {
		instanceCreateInfo.EnabledLayerCount = 1
		instanceCreateInfo.PpEnabledLayerNames = []string{validationLayer + "\x00"}
	}
	var instance vulkan.Instance
	if res := vulkan.CreateInstance(&instanceCreateInfo, nil, &instance); res != vulkan.Success {
		log.Fatalf("create instance: %s", vkfmt.ResultString(res))
	}
	if err := vulkan.InitInstance(instance); err != nil {
		log.Fatalf("init instance commands: %v", err)
	}

	// A machine can expose several physical devices, for example a discrete
	// card next to a software implementation like Lavapipe running on the
	// CPU. Enumerate them all, then take the first real GPU that has a queue
	// family supporting both graphics commands (for the draw the later
	// programs add) and transfer commands (for the copy to the readback
	// buffer).
	log.Printf("enumerating physical devices")
	var deviceCount uint32
	if res := vulkan.EnumeratePhysicalDevices(instance, &deviceCount, nil); res != vulkan.Success {
		log.Fatalf("enumerate physical devices: %s", vkfmt.ResultString(res))
	}
	if deviceCount == 0 {
		log.Fatal("found no physical device")
	}
	physicalDevices := make([]vulkan.PhysicalDevice, deviceCount)
	if res := vulkan.EnumeratePhysicalDevices(instance, &deviceCount, physicalDevices); res == vulkan.Incomplete {
		log.Printf("more physical devices appeared during enumeration, continuing with %d", deviceCount)
	} else if res != vulkan.Success {
		log.Fatalf("enumerate physical devices: %s", vkfmt.ResultString(res))
	}
	log.Printf("%d physical devices available", deviceCount)

	log.Printf("selecting a suitable physical device")
	var physicalDevice vulkan.PhysicalDevice
	var deviceProperties vulkan.PhysicalDeviceProperties
	var queueFamilyIndex uint32
	deviceFound := false
	for i, candidate := range physicalDevices {
		var props vulkan.PhysicalDeviceProperties
		vulkan.GetPhysicalDeviceProperties(candidate, &props)
		props.Deref()
		if !gpupick.Suitable(props.DeviceType) {
			log.Printf("physical device %d is a %s, not a GPU", i, gpupick.TypeString(props.DeviceType))
			continue
		}
		var familyCount uint32
		vulkan.GetPhysicalDeviceQueueFamilyProperties(candidate, &familyCount, nil)
		families := make([]vulkan.QueueFamilyProperties, familyCount)
		vulkan.GetPhysicalDeviceQueueFamilyProperties(candidate, &familyCount, families)
		for j := range families {
			families[j].Deref()
		}
		family, ok := gpupick.FindQueueFamily(families, gpupick.RequiredQueueFlags)
		if !ok {
			log.Printf("physical device %d has no graphics+transfer queue family", i)
			continue
		}
		physicalDevice = candidate
		deviceProperties = props
		queueFamilyIndex = family
		deviceFound = true
		break
	}
	if !deviceFound {
		log.Fatal("failed to find a suitable physical device")
	}
	log.Printf("selected physical device %q (%s), queue family %d",
		vulkan.ToString(deviceProperties.DeviceName[:]),
		gpupick.TypeString(deviceProperties.DeviceType), queueFamilyIndex)

	// The logical device is the configured interface to the physical one,
	// and it owns the queues it is created with. One queue from the selected
	// family is enough here; the priority must be set but is meaningless
	// with a single queue. Physical devices are only enumerated handles and
	// need no destruction; the logical device does.
	log.Printf("creating device")
	queueCreateInfo := vulkan.DeviceQueueCreateInfo{
		SType:            vulkan.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: queueFamilyIndex,
		QueueCount:       1,
		PQueuePriorities: []float32{1.0},
	}
	deviceCreateInfo := vulkan.DeviceCreateInfo{
		SType:                vulkan.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount: 1,
		PQueueCreateInfos:    []vulkan.DeviceQueueCreateInfo{queueCreateInfo},
	}
	var device vulkan.Device
	if res := vulkan.CreateDevice(physicalDevice, &deviceCreateInfo, nil, &device); res != vulkan.Success {
		log.Fatalf("create device: %s", vkfmt.ResultString(res))
	}
	var queue vulkan.Queue
	vulkan.GetDeviceQueue(device, queueFamilyIndex, 0, &queue)
	_ = queue // nothing is submitted yet, later programs use it

	// Teardown walks the creation order backwards. Waiting for the device to
	// go idle is pointless with nothing submitted, but it is the habit every
	// program here keeps, so it starts now.
	log.Printf("waiting until device is idle")
	vulkan.DeviceWaitIdle(device)

	log.Printf("destroying device")
	vulkan.DestroyDevice(device, nil)
	log.Printf("destroying instance")
	vulkan.DestroyInstance(instance, nil)
}

func validationEnabled() bool {
	switch os.Getenv("VK_VALIDATION") {
	case "0", "false", "False", "FALSE":
		return false
	default:
		return true
	}
}

func validationLayerSupported() bool {
	var count uint32
	if vulkan.EnumerateInstanceLayerProperties(&count, nil) != vulkan.Success {
		return false
	}
	props := make([]vulkan.LayerProperties, count)
	if vulkan.EnumerateInstanceLayerProperties(&count, props) != vulkan.Success {
		return false
	}
	for i := range props {
		props[i].Deref()
		if vulkan.ToString(props[i].LayerName[:]) == validationLayer {
			return true
		}
	}
	return false
}
