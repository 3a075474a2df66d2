// The second program of the walkthrough: everything the first one did, plus
// the resources rendering will need. A 20x20 depth/stencil image backed by
// device local memory, a view into it, and a host visible buffer the depth
// texels will eventually be copied into. This is where Vulkan's split between
// images, buffers, raw memory, and views shows up for the first time.
package main

import (
	"log"
	"os"

	"github.com/cdeln/vulkan-intro/internal/gpupick"
	"github.com/cdeln/vulkan-intro/internal/vkfmt"
	"github.com/goki/vulkan"
)

const (
	imageWidth  = 20
	imageHeight = 20
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
	// reverse order of creation.
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

	// Enumerate the physical devices, then take the first real GPU that has
	// a queue family supporting both graphics and transfer commands.
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
	// and it owns the queues it is created with.
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

	// Vulkan separates images, buffers, raw memory and views into them.
	// The render target is an image: 24-bit depth with an 8-bit stencil,
	// used as a depth/stencil attachment and as the source of a transfer.
	// Optimal tiling lets the driver pick the fastest memory layout, and
	// the undefined initial layout is fine because the render pass will
	// clear the whole image anyway.
	log.Printf("creating image")
	const imageFormat = vulkan.FormatD24UnormS8Uint
	imageExtent := vulkan.Extent3D{Width: imageWidth, Height: imageHeight, Depth: 1}
	imageCreateInfo := vulkan.ImageCreateInfo{
		SType:                 vulkan.StructureTypeImageCreateInfo,
		ImageType:             vulkan.ImageType2d,
		Format:                imageFormat,
		Extent:                imageExtent,
		MipLevels:             1,
		ArrayLayers:           1,
		Samples:               vulkan.SampleCount1Bit,
		Tiling:                vulkan.ImageTilingOptimal,
		Usage:                 vulkan.ImageUsageFlags(vulkan.ImageUsageDepthStencilAttachmentBit | vulkan.ImageUsageTransferSrcBit),
		SharingMode:           vulkan.SharingModeExclusive,
		QueueFamilyIndexCount: 1,
		PQueueFamilyIndices:   []uint32{queueFamilyIndex},
		InitialLayout:         vulkan.ImageLayoutUndefined,
	}
	var image vulkan.Image
	if res := vulkan.CreateImage(device, &imageCreateInfo, nil, &image); res != vulkan.Success {
		log.Fatalf("create image: %s", vkfmt.ResultString(res))
	}

	// Images get no memory by default. Query what the image requires, then
	// find a memory type that both satisfies those requirements (one of the
	// bits in MemoryTypeBits is set for it) and is device local, meaning
	// accesses happen on the GPU side.
	var imageMemoryRequirements vulkan.MemoryRequirements
	vulkan.GetImageMemoryRequirements(device, image, &imageMemoryRequirements)
	imageMemoryRequirements.Deref()
	var memoryProperties vulkan.PhysicalDeviceMemoryProperties
	vulkan.GetPhysicalDeviceMemoryProperties(physicalDevice, &memoryProperties)
	memoryProperties.Deref()

	imageMemoryFlags := vulkan.MemoryPropertyFlags(vulkan.MemoryPropertyDeviceLocalBit)
	imageMemoryType := memoryProperties.MemoryTypeCount
	for i := uint32(0); i < memoryProperties.MemoryTypeCount; i++ {
		if imageMemoryRequirements.MemoryTypeBits&(1<<i) == 0 {
			continue
		}
		memoryType := memoryProperties.MemoryTypes[i]
		memoryType.Deref()
		if memoryType.PropertyFlags&imageMemoryFlags == imageMemoryFlags {
			imageMemoryType = i
			break
		}
	}
	if imageMemoryType == memoryProperties.MemoryTypeCount {
		log.Fatal("no device local memory type matches the image requirements")
	}

	log.Printf("allocating image memory")
	imageAllocateInfo := vulkan.MemoryAllocateInfo{
		SType:           vulkan.StructureTypeMemoryAllocateInfo,
		AllocationSize:  imageMemoryRequirements.Size,
		MemoryTypeIndex: imageMemoryType,
	}
	var imageMemory vulkan.DeviceMemory
	if res := vulkan.AllocateMemory(device, &imageAllocateInfo, nil, &imageMemory); res != vulkan.Success {
		log.Fatalf("allocate image memory: %s", vkfmt.ResultString(res))
	}
	log.Printf("binding image memory")
	if res := vulkan.BindImageMemory(device, image, imageMemory, 0); res != vulkan.Success {
		log.Fatalf("bind image memory: %s", vkfmt.ResultString(res))
	}

	// The view selects which part of the image gets accessed: both the
	// depth and stencil aspects, the single mip level, the single layer.
	// Identity swizzles leave the components alone. This is what the
	// framebuffer will reference in the next program.
	log.Printf("creating image view")
	subresourceRange := vulkan.ImageSubresourceRange{
		AspectMask:     vulkan.ImageAspectFlags(vulkan.ImageAspectDepthBit | vulkan.ImageAspectStencilBit),
		BaseMipLevel:   0,
		LevelCount:     1,
		BaseArrayLayer: 0,
		LayerCount:     1,
	}
	imageViewCreateInfo := vulkan.ImageViewCreateInfo{
		SType:    vulkan.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vulkan.ImageViewType2d,
		Format:   imageFormat,
		Components: vulkan.ComponentMapping{
			R: vulkan.ComponentSwizzleIdentity,
			G: vulkan.ComponentSwizzleIdentity,
			B: vulkan.ComponentSwizzleIdentity,
			A: vulkan.ComponentSwizzleIdentity,
		},
		SubresourceRange: subresourceRange,
	}
	var imageView vulkan.ImageView
	if res := vulkan.CreateImageView(device, &imageViewCreateInfo, nil, &imageView); res != vulkan.Success {
		log.Fatalf("create image view: %s", vkfmt.ResultString(res))
	}

	// The readback buffer receives the rendered texels so the host can map
	// and read them. Buffers are linear, so the needed size follows from
	// the texel byte size. Host visible means the memory can be mapped;
	// host coherent means device writes become visible without explicit
	// cache flushes.
	log.Printf("creating pixel readback buffer")
	texelSize := vkfmt.FormatSize(imageFormat)
	if texelSize == 0 {
		log.Fatalf("no byte size known for format %s", vkfmt.FormatString(imageFormat))
	}
	readbackSize := vulkan.DeviceSize(texelSize * imageWidth * imageHeight)
	bufferCreateInfo := vulkan.BufferCreateInfo{
		SType:                 vulkan.StructureTypeBufferCreateInfo,
		Size:                  readbackSize,
		Usage:                 vulkan.BufferUsageFlags(vulkan.BufferUsageTransferDstBit),
		SharingMode:           vulkan.SharingModeExclusive,
		QueueFamilyIndexCount: 1,
		PQueueFamilyIndices:   []uint32{queueFamilyIndex},
	}
	var readbackBuffer vulkan.Buffer
	if res := vulkan.CreateBuffer(device, &bufferCreateInfo, nil, &readbackBuffer); res != vulkan.Success {
		log.Fatalf("create readback buffer: %s", vkfmt.ResultString(res))
	}

	var bufferMemoryRequirements vulkan.MemoryRequirements
	vulkan.GetBufferMemoryRequirements(device, readbackBuffer, &bufferMemoryRequirements)
	bufferMemoryRequirements.Deref()
	bufferMemoryFlags := vulkan.MemoryPropertyFlags(vulkan.MemoryPropertyHostVisibleBit | vulkan.MemoryPropertyHostCoherentBit)
	bufferMemoryType := memoryProperties.MemoryTypeCount
	for i := uint32(0); i < memoryProperties.MemoryTypeCount; i++ {
		if bufferMemoryRequirements.MemoryTypeBits&(1<<i) == 0 {
			continue
		}
		memoryType := memoryProperties.MemoryTypes[i]
		memoryType.Deref()
		if memoryType.PropertyFlags&bufferMemoryFlags == bufferMemoryFlags {
			bufferMemoryType = i
			break
		}
	}
	if bufferMemoryType == memoryProperties.MemoryTypeCount {
		log.Fatal("no host visible coherent memory type matches the buffer requirements")
	}

	log.Printf("allocating readback buffer memory")
	bufferAllocateInfo := vulkan.MemoryAllocateInfo{
		SType:           vulkan.StructureTypeMemoryAllocateInfo,
		AllocationSize:  bufferMemoryRequirements.Size,
		MemoryTypeIndex: bufferMemoryType,
	}
	var readbackMemory vulkan.DeviceMemory
	if res := vulkan.AllocateMemory(device, &bufferAllocateInfo, nil, &readbackMemory); res != vulkan.Success {
		log.Fatalf("allocate readback buffer memory: %s", vkfmt.ResultString(res))
	}
	log.Printf("binding readback buffer memory")
	if res := vulkan.BindBufferMemory(device, readbackBuffer, readbackMemory, 0); res != vulkan.Success {
		log.Fatalf("bind readback buffer memory: %s", vkfmt.ResultString(res))
	}

	// Teardown walks the creation order backwards: children before parents.
	// Memory is freed rather than destroyed, and only after the objects
	// bound to it are gone.
	log.Printf("waiting until device is idle")
	vulkan.DeviceWaitIdle(device)

	log.Printf("destroying readback buffer")
	vulkan.DestroyBuffer(device, readbackBuffer, nil)
	log.Printf("freeing readback buffer memory")
	vulkan.FreeMemory(device, readbackMemory, nil)
	log.Printf("destroying image view")
	vulkan.DestroyImageView(device, imageView, nil)
	log.Printf("destroying image")
	vulkan.DestroyImage(device, image, nil)
	log.Printf("freeing image memory")
	vulkan.FreeMemory(device, imageMemory, nil)
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
