// vkinfo prints an inventory of the Vulkan implementation on this machine:
// instance layers, every physical device with its queue families, memory
// heaps, and memory types. The tables show the raw material the walkthrough
// programs select from, and mark what their selection policy would pick.
package main

import (
	"fmt"
	"log"

	"github.com/cdeln/vulkan-intro/internal/gpupick"
	"github.com/cdeln/vulkan-intro/internal/vkfmt"
	"github.com/docker/go-units"
	"github.com/goki/vulkan"
	"github.com/xlab/tablewriter"
)

func main() {
	if err := vulkan.SetDefaultGetInstanceProcAddr(); err != nil {
		log.Fatalf("locate vulkan loader: %v", err)
	}
	if err := vulkan.Init(); err != nil {
		log.Fatalf("vulkan init: %v", err)
	}

	// No layers here: vkinfo only reads, and it should report the
	// implementation as it is, validation installed or not.
	appInfo := vulkan.ApplicationInfo{
		SType:      vulkan.StructureTypeApplicationInfo,
		ApiVersion: vulkan.MakeVersion(1, 0, 0),
	}
	instanceCreateInfo := vulkan.InstanceCreateInfo{
		SType:            vulkan.StructureTypeInstanceCreateInfo,
		PApplicationInfo: &appInfo,
	}
	var instance vulkan.Instance
	if res := vulkan.CreateInstance(&instanceCreateInfo, nil, &instance); res != vulkan.Success {
		log.Fatalf("create instance: %s", vkfmt.ResultString(res))
	}
	if err := vulkan.InitInstance(instance); err != nil {
		log.Fatalf("init instance commands: %v", err)
	}

	printInstanceLayers()

	var deviceCount uint32
	if res := vulkan.EnumeratePhysicalDevices(instance, &deviceCount, nil); res != vulkan.Success {
		log.Fatalf("enumerate physical devices: %s", vkfmt.ResultString(res))
	}
	if deviceCount == 0 {
		log.Fatal("found no physical device")
	}
	physicalDevices := make([]vulkan.PhysicalDevice, deviceCount)
	if res := vulkan.EnumeratePhysicalDevices(instance, &deviceCount, physicalDevices); res != vulkan.Success && res != vulkan.Incomplete {
		log.Fatalf("enumerate physical devices: %s", vkfmt.ResultString(res))
	}

	picked := false
	for i, device := range physicalDevices {
		pickedHere := printPhysicalDevice(i, device, !picked)
		picked = picked || pickedHere
	}
	if !picked {
		fmt.Println("no device satisfies the walkthrough selection policy")
	}

	vulkan.DestroyInstance(instance, nil)
}

func printInstanceLayers() {
	var count uint32
	if res := vulkan.EnumerateInstanceLayerProperties(&count, nil); res != vulkan.Success {
		log.Fatalf("enumerate instance layers: %s", vkfmt.ResultString(res))
	}
	props := make([]vulkan.LayerProperties, count)
	if res := vulkan.EnumerateInstanceLayerProperties(&count, props); res != vulkan.Success {
		log.Fatalf("enumerate instance layers: %s", vkfmt.ResultString(res))
	}

	table := tablewriter.CreateTable()
	table.UTF8Box()
	table.AddTitle("INSTANCE LAYERS")
	if count == 0 {
		table.AddRow("(none installed)")
	}
	for i := range props {
		props[i].Deref()
		table.AddRow(vulkan.ToString(props[i].LayerName[:]),
			vulkan.ToString(props[i].Description[:]))
	}
	fmt.Println(table.Render())
}

// printPhysicalDevice renders one device table and reports whether the
// walkthrough selection policy (first suitable GPU with a graphics+transfer
// family) would pick this device. mayPick is false once an earlier device
// was already picked.
func printPhysicalDevice(index int, device vulkan.PhysicalDevice, mayPick bool) bool {
	var props vulkan.PhysicalDeviceProperties
	vulkan.GetPhysicalDeviceProperties(device, &props)
	props.Deref()

	var familyCount uint32
	vulkan.GetPhysicalDeviceQueueFamilyProperties(device, &familyCount, nil)
	families := make([]vulkan.QueueFamilyProperties, familyCount)
	vulkan.GetPhysicalDeviceQueueFamilyProperties(device, &familyCount, families)
	for i := range families {
		families[i].Deref()
	}

	var memoryProperties vulkan.PhysicalDeviceMemoryProperties
	vulkan.GetPhysicalDeviceMemoryProperties(device, &memoryProperties)
	memoryProperties.Deref()

	pickedFamily, hasFamily := gpupick.FindQueueFamily(families, gpupick.RequiredQueueFlags)
	picked := mayPick && gpupick.Suitable(props.DeviceType) && hasFamily

	table := tablewriter.CreateTable()
	table.UTF8Box()
	table.AddTitle(fmt.Sprintf("PHYSICAL DEVICE %d", index))
	table.AddRow("Name", vulkan.ToString(props.DeviceName[:]))
	table.AddRow("Type", gpupick.TypeString(props.DeviceType))
	table.AddRow("Vendor ID", fmt.Sprintf("0x%04x", props.VendorID))
	table.AddRow("Device ID", fmt.Sprintf("0x%04x", props.DeviceID))
	table.AddRow("API Version", vulkan.Version(props.ApiVersion))
	table.AddRow("Driver Version", vulkan.Version(props.DriverVersion))
	if picked {
		table.AddRow("Selection", fmt.Sprintf("picked, queue family %d", pickedFamily))
	} else {
		table.AddRow("Selection", selectionNote(props.DeviceType, hasFamily, mayPick))
	}

	table.AddSeparator()
	table.AddRow("QUEUE FAMILIES")
	for i := range families {
		mark := ""
		if picked && uint32(i) == pickedFamily {
			mark = " <- selected"
		}
		table.AddRow(i, fmt.Sprintf("%d queues, %s%s",
			families[i].QueueCount, gpupick.QueueFlagsString(families[i].QueueFlags), mark))
	}

	table.AddSeparator()
	table.AddRow("MEMORY HEAPS")
	for i := uint32(0); i < memoryProperties.MemoryHeapCount; i++ {
		heap := memoryProperties.MemoryHeaps[i]
		heap.Deref()
		kind := "host"
		if heap.Flags&vulkan.MemoryHeapFlags(vulkan.MemoryHeapDeviceLocalBit) != 0 {
			kind = "device local"
		}
		table.AddRow(i, fmt.Sprintf("%s, %s",
			units.BytesSize(float64(heap.Size)), kind))
	}

	table.AddSeparator()
	table.AddRow("MEMORY TYPES")
	for i := uint32(0); i < memoryProperties.MemoryTypeCount; i++ {
		memoryType := memoryProperties.MemoryTypes[i]
		memoryType.Deref()
		table.AddRow(i, fmt.Sprintf("heap %d, %s",
			memoryType.HeapIndex, memoryPropertyFlagsString(memoryType.PropertyFlags)))
	}

	fmt.Println(table.Render())
	return picked
}

func selectionNote(deviceType vulkan.PhysicalDeviceType, hasFamily, mayPick bool) string {
	switch {
	case !gpupick.Suitable(deviceType):
		return fmt.Sprintf("skipped, %s is not a GPU", gpupick.TypeString(deviceType))
	case !hasFamily:
		return "skipped, no graphics+transfer queue family"
	case !mayPick:
		return "suitable, but an earlier device was picked"
	default:
		return "suitable"
	}
}

func memoryPropertyFlagsString(flags vulkan.MemoryPropertyFlags) string {
	s := ""
	if flags&vulkan.MemoryPropertyFlags(vulkan.MemoryPropertyDeviceLocalBit) != 0 {
		s += "DEVICE_LOCAL|"
	}
	if flags&vulkan.MemoryPropertyFlags(vulkan.MemoryPropertyHostVisibleBit) != 0 {
		s += "HOST_VISIBLE|"
	}
	if flags&vulkan.MemoryPropertyFlags(vulkan.MemoryPropertyHostCoherentBit) != 0 {
		s += "HOST_COHERENT|"
	}
	if flags&vulkan.MemoryPropertyFlags(vulkan.MemoryPropertyHostCachedBit) != 0 {
		s += "HOST_CACHED|"
	}
	if flags&vulkan.MemoryPropertyFlags(vulkan.MemoryPropertyLazilyAllocatedBit) != 0 {
		s += "LAZILY_ALLOCATED|"
	}
	if len(s) > 0 {
		s = s[:len(s)-1]
	} else {
		s = "NONE"
	}
	return fmt.Sprintf("%s (0x%x)", s, uint32(flags))
}
