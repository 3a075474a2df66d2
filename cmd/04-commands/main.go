// The fourth program of the walkthrough: everything the third one did, plus
// execution. Commands are recorded into a command buffer: clear and draw
// inside the render pass, a barrier transitioning the image for transfer,
// and a copy of the depth texels into the readback buffer. The buffer goes
// to the queue with a fence, and the host polls the fence until the device
// is done. The texels stay on the device; the final program reads them back.
package main

import (
	"errors"
	"log"
	"os"
	"time"

	"github.com/cdeln/vulkan-intro/internal/gpupick"
	"github.com/cdeln/vulkan-intro/internal/spirv"
	"github.com/cdeln/vulkan-intro/internal/vkfmt"
	"github.com/goki/vulkan"
)

const (
	imageWidth  = 20
	imageHeight = 20

	shaderPath = "out/shader.vert.spv"
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
	// and it owns the queues it is created with. This time the queue gets
	// used: it receives the recorded command buffer at the end.
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

	// The render target: 24-bit depth with an 8-bit stencil, used as a
	// depth/stencil attachment and as the source of a transfer.
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

	// Find a device local memory type the image accepts, allocate, bind.
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

	// The view over both aspects, single mip, single layer.
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

	// The host visible readback buffer the copy command will target.
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

	// The render pass: clear on load, store on exit, undefined to
	// depth/stencil optimal.
	log.Printf("creating render pass")
	attachment := vulkan.AttachmentDescription{
		Format:         imageFormat,
		Samples:        vulkan.SampleCount1Bit,
		LoadOp:         vulkan.AttachmentLoadOpClear,
		StoreOp:        vulkan.AttachmentStoreOpStore,
		StencilLoadOp:  vulkan.AttachmentLoadOpDontCare,
		StencilStoreOp: vulkan.AttachmentStoreOpDontCare,
		InitialLayout:  vulkan.ImageLayoutUndefined,
		FinalLayout:    vulkan.ImageLayoutDepthStencilAttachmentOptimal,
	}
	depthAttachmentRef := vulkan.AttachmentReference{
		Attachment: 0,
		Layout:     vulkan.ImageLayoutDepthStencilAttachmentOptimal,
	}
	subpass := vulkan.SubpassDescription{
		PipelineBindPoint:       vulkan.PipelineBindPointGraphics,
		PDepthStencilAttachment: &depthAttachmentRef,
	}
	renderPassCreateInfo := vulkan.RenderPassCreateInfo{
		SType:           vulkan.StructureTypeRenderPassCreateInfo,
		AttachmentCount: 1,
		PAttachments:    []vulkan.AttachmentDescription{attachment},
		SubpassCount:    1,
		PSubpasses:      []vulkan.SubpassDescription{subpass},
	}
	var renderPass vulkan.RenderPass
	if res := vulkan.CreateRenderPass(device, &renderPassCreateInfo, nil, &renderPass); res != vulkan.Success {
		log.Fatalf("create render pass: %s", vkfmt.ResultString(res))
	}

	log.Printf("creating framebuffer")
	framebufferCreateInfo := vulkan.FramebufferCreateInfo{
		SType:           vulkan.StructureTypeFramebufferCreateInfo,
		RenderPass:      renderPass,
		AttachmentCount: 1,
		PAttachments:    []vulkan.ImageView{imageView},
		Width:           imageWidth,
		Height:          imageHeight,
		Layers:          1,
	}
	var framebuffer vulkan.Framebuffer
	if res := vulkan.CreateFramebuffer(device, &framebufferCreateInfo, nil, &framebuffer); res != vulkan.Success {
		log.Fatalf("create framebuffer: %s", vkfmt.ResultString(res))
	}

	// The precompiled vertex shader, validated before it reaches the driver.
	log.Printf("creating vertex shader module from %s", shaderPath)
	shaderWords, err := spirv.Load(shaderPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Fatalf("missing shader binary, compile it first: glslc shaders/triangle.vert -o %s", shaderPath)
		}
		log.Fatalf("load vertex shader: %v", err)
	}
	shaderModuleCreateInfo := vulkan.ShaderModuleCreateInfo{
		SType:    vulkan.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint64(4 * len(shaderWords)),
		PCode:    shaderWords,
	}
	var shaderModule vulkan.ShaderModule
	if res := vulkan.CreateShaderModule(device, &shaderModuleCreateInfo, nil, &shaderModule); res != vulkan.Success {
		log.Fatalf("create shader module: %s", vkfmt.ResultString(res))
	}

	// The graphics pipeline: vertex stage only, no vertex input, triangle
	// list, full-image viewport, depth test and write with LESS, no color
	// attachment, empty layout.
	log.Printf("creating graphics pipeline")
	pipelineLayoutCreateInfo := vulkan.PipelineLayoutCreateInfo{
		SType: vulkan.StructureTypePipelineLayoutCreateInfo,
	}
	var pipelineLayout vulkan.PipelineLayout
	if res := vulkan.CreatePipelineLayout(device, &pipelineLayoutCreateInfo, nil, &pipelineLayout); res != vulkan.Success {
		log.Fatalf("create pipeline layout: %s", vkfmt.ResultString(res))
	}

	shaderStages := []vulkan.PipelineShaderStageCreateInfo{{
		SType:  vulkan.StructureTypePipelineShaderStageCreateInfo,
		Stage:  vulkan.ShaderStageVertexBit,
		Module: shaderModule,
		PName:  "main\x00",
	}}
	vertexInputState := vulkan.PipelineVertexInputStateCreateInfo{
		SType: vulkan.StructureTypePipelineVertexInputStateCreateInfo,
	}
	inputAssemblyState := vulkan.PipelineInputAssemblyStateCreateInfo{
		SType:    vulkan.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology: vulkan.PrimitiveTopologyTriangleList,
	}
	viewport := vulkan.Viewport{
		Width:    imageWidth,
		Height:   imageHeight,
		MinDepth: 0,
		MaxDepth: 1,
	}
	scissor := vulkan.Rect2D{
		Extent: vulkan.Extent2D{Width: imageWidth, Height: imageHeight},
	}
	viewportState := vulkan.PipelineViewportStateCreateInfo{
		SType:         vulkan.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		PViewports:    []vulkan.Viewport{viewport},
		ScissorCount:  1,
		PScissors:     []vulkan.Rect2D{scissor},
	}
	rasterizationState := vulkan.PipelineRasterizationStateCreateInfo{
		SType:       vulkan.StructureTypePipelineRasterizationStateCreateInfo,
		PolygonMode: vulkan.PolygonModeFill,
		LineWidth:   1,
	}
	multisampleState := vulkan.PipelineMultisampleStateCreateInfo{
		SType:                vulkan.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: vulkan.SampleCount1Bit,
	}
	depthStencilState := vulkan.PipelineDepthStencilStateCreateInfo{
		SType:            vulkan.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:  vulkan.True,
		DepthWriteEnable: vulkan.True,
		DepthCompareOp:   vulkan.CompareOpLess,
	}
	pipelineCreateInfo := vulkan.GraphicsPipelineCreateInfo{
		SType:               vulkan.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          1,
		PStages:             shaderStages,
		PVertexInputState:   &vertexInputState,
		PInputAssemblyState: &inputAssemblyState,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizationState,
		PMultisampleState:   &multisampleState,
		PDepthStencilState:  &depthStencilState,
		Layout:              pipelineLayout,
		RenderPass:          renderPass,
	}
	pipelines := make([]vulkan.Pipeline, 1)
	if res := vulkan.CreateGraphicsPipelines(device, vulkan.PipelineCache(vulkan.NullHandle), 1, []vulkan.GraphicsPipelineCreateInfo{pipelineCreateInfo}, nil, pipelines); res != vulkan.Success {
		log.Fatalf("create graphics pipeline: %s", vkfmt.ResultString(res))
	}
	graphicsPipeline := pipelines[0]

	// Commands reach the device in recorded batches. The pool allocates
	// command buffers for one queue family; the reset flag returns reused
	// buffers to a recordable state. A command buffer moves through
	// Vulkan's documented lifecycle: initial after allocation, recording
	// after begin, executable after end, pending after submit.
	log.Printf("creating command pool")
	commandPoolCreateInfo := vulkan.CommandPoolCreateInfo{
		SType:            vulkan.StructureTypeCommandPoolCreateInfo,
		Flags:            vulkan.CommandPoolCreateFlags(vulkan.CommandPoolCreateResetCommandBufferBit),
		QueueFamilyIndex: queueFamilyIndex,
	}
	var commandPool vulkan.CommandPool
	if res := vulkan.CreateCommandPool(device, &commandPoolCreateInfo, nil, &commandPool); res != vulkan.Success {
		log.Fatalf("create command pool: %s", vkfmt.ResultString(res))
	}

	log.Printf("allocating command buffer")
	commandBufferAllocateInfo := vulkan.CommandBufferAllocateInfo{
		SType:              vulkan.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        commandPool,
		Level:              vulkan.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	commandBuffers := make([]vulkan.CommandBuffer, 1)
	if res := vulkan.AllocateCommandBuffers(device, &commandBufferAllocateInfo, commandBuffers); res != vulkan.Success {
		log.Fatalf("allocate command buffer: %s", vkfmt.ResultString(res))
	}
	commandBuffer := commandBuffers[0]

	// Record the whole frame: clear to the far plane, draw the three
	// shader-defined vertices, then get the image ready for the copy.
	log.Printf("recording command buffer")
	beginInfo := vulkan.CommandBufferBeginInfo{
		SType: vulkan.StructureTypeCommandBufferBeginInfo,
	}
	if res := vulkan.BeginCommandBuffer(commandBuffer, &beginInfo); res != vulkan.Success {
		log.Fatalf("begin command buffer: %s", vkfmt.ResultString(res))
	}
	clearValue := vulkan.NewClearDepthStencil(1.0, 0)
	renderPassBeginInfo := vulkan.RenderPassBeginInfo{
		SType:       vulkan.StructureTypeRenderPassBeginInfo,
		RenderPass:  renderPass,
		Framebuffer: framebuffer,
		RenderArea: vulkan.Rect2D{
			Offset: vulkan.Offset2D{X: 0, Y: 0},
			Extent: vulkan.Extent2D{Width: imageWidth, Height: imageHeight},
		},
		ClearValueCount: 1,
		PClearValues:    []vulkan.ClearValue{clearValue},
	}
	vulkan.CmdBeginRenderPass(commandBuffer, &renderPassBeginInfo, vulkan.SubpassContentsInline)
	vulkan.CmdBindPipeline(commandBuffer, vulkan.PipelineBindPointGraphics, graphicsPipeline)
	vulkan.CmdDraw(commandBuffer, 3, 1, 0, 0)
	vulkan.CmdEndRenderPass(commandBuffer)

	// After the render pass the image sits in the depth/stencil optimal
	// layout. The barrier transitions it in place to the transfer source
	// layout and orders the depth writes of the late fragment tests before
	// the transfer read. ByRegion keeps the dependency framebuffer local.
	barrier := vulkan.ImageMemoryBarrier{
		SType:               vulkan.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       vulkan.AccessFlags(vulkan.AccessDepthStencilAttachmentWriteBit),
		DstAccessMask:       vulkan.AccessFlags(vulkan.AccessTransferReadBit),
		OldLayout:           vulkan.ImageLayoutDepthStencilAttachmentOptimal,
		NewLayout:           vulkan.ImageLayoutTransferSrcOptimal,
		SrcQueueFamilyIndex: queueFamilyIndex,
		DstQueueFamilyIndex: queueFamilyIndex,
		Image:               image,
		SubresourceRange:    subresourceRange,
	}
	vulkan.CmdPipelineBarrier(commandBuffer,
		vulkan.PipelineStageFlags(vulkan.PipelineStageLateFragmentTestsBit),
		vulkan.PipelineStageFlags(vulkan.PipelineStageTransferBit),
		vulkan.DependencyFlags(vulkan.DependencyByRegionBit),
		0, nil, 0, nil, 1, []vulkan.ImageMemoryBarrier{barrier})

	// Only one aspect can be copied at a time. Copying the depth aspect of
	// a D24_UNORM_S8_UINT image produces X8_D24_UNORM_PACK32 texels: 32-bit
	// words whose low 24 bits are the depth.
	copyRegion := vulkan.BufferImageCopy{
		ImageSubresource: vulkan.ImageSubresourceLayers{
			AspectMask:     vulkan.ImageAspectFlags(vulkan.ImageAspectDepthBit),
			MipLevel:       0,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
		ImageExtent: imageExtent,
	}
	vulkan.CmdCopyImageToBuffer(commandBuffer, image, vulkan.ImageLayoutTransferSrcOptimal, readbackBuffer, 1, []vulkan.BufferImageCopy{copyRegion})

	if res := vulkan.EndCommandBuffer(commandBuffer); res != vulkan.Success {
		log.Fatalf("end command buffer: %s", vkfmt.ResultString(res))
	}

	// Submission puts the command buffer in flight. The fence starts
	// unsignaled and the device signals it when execution completes.
	fenceCreateInfo := vulkan.FenceCreateInfo{
		SType: vulkan.StructureTypeFenceCreateInfo,
	}
	var fence vulkan.Fence
	if res := vulkan.CreateFence(device, &fenceCreateInfo, nil, &fence); res != vulkan.Success {
		log.Fatalf("create fence: %s", vkfmt.ResultString(res))
	}
	log.Printf("submitting commands to queue")
	submitInfo := vulkan.SubmitInfo{
		SType:              vulkan.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vulkan.CommandBuffer{commandBuffer},
	}
	if res := vulkan.QueueSubmit(queue, 1, []vulkan.SubmitInfo{submitInfo}, fence); res != vulkan.Success {
		log.Fatalf("queue submit: %s", vkfmt.ResultString(res))
	}

	for {
		res := vulkan.WaitForFences(device, 1, []vulkan.Fence{fence}, vulkan.True, uint64(time.Millisecond))
		if res == vulkan.Success {
			break
		}
		log.Printf("waiting until fence is signaled, current status: %s", vkfmt.ResultString(res))
	}
	log.Printf("command execution completed, the depth texels now sit in the readback buffer")

	// Teardown walks the creation order backwards. Pool allocations would
	// be freed with their pool anyway; the explicit free shows the manual
	// route.
	log.Printf("waiting until device is idle")
	vulkan.DeviceWaitIdle(device)

	log.Printf("destroying fence")
	vulkan.DestroyFence(device, fence, nil)
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
	log.Printf("destroying shader module")
	vulkan.DestroyShaderModule(device, shaderModule, nil)
	log.Printf("freeing command buffer")
	vulkan.FreeCommandBuffers(device, commandPool, 1, commandBuffers)
	log.Printf("destroying command pool")
	vulkan.DestroyCommandPool(device, commandPool, nil)
	log.Printf("destroying pipeline")
	vulkan.DestroyPipeline(device, graphicsPipeline, nil)
	log.Printf("destroying pipeline layout")
	vulkan.DestroyPipelineLayout(device, pipelineLayout, nil)
	log.Printf("destroying framebuffer")
	vulkan.DestroyFramebuffer(device, framebuffer, nil)
	log.Printf("destroying render pass")
	vulkan.DestroyRenderPass(device, renderPass, nil)
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
