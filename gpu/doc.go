// Package gpu is the boundary between the streaming engine and a graphics
// API.
//
// The engine needs very little from the GPU: creating 3D textures and
// writing sub-regions into them. Descriptors and copy layouts use the
// WebGPU-shaped types of github.com/gogpu/gputypes so that a real backend
// can pass them straight through.
//
// All Device calls are made from the render goroutine.
//
// SoftwareDevice keeps textures in host memory. It backs headless use and
// tests, and can read texture contents back.
package gpu
