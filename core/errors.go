// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"fmt"
	"strings"
)

// Creation stages reported by CreationError.
const (
	StageInstance      = "instance"
	StageDevice        = "device"
	StageSurface       = "surface"
	StageSwapchain     = "swapchain"
	StageImageView     = "image view"
	StageShaderModule  = "shader module"
	StageLayout        = "layout"
	StageRenderPass    = "render pass"
	StagePipeline      = "pipeline"
	StageFramebuffer   = "framebuffer"
	StageCommandPool   = "command pool"
	StageCommandBuffer = "command buffer"
	StageSemaphore     = "semaphore"
	StageFence         = "fence"
)

// Frame steps reported by FrameError.
const (
	StepFenceWait  = "fence wait"
	StepFenceReset = "fence reset"
	StepAcquire    = "acquire"
	StepRecord     = "record"
	StepSubmit     = "submit"
	StepPresent    = "present"
	StepDeviceIdle = "device idle"
)

// CreationError is returned when an API object could not be created.
// Nothing created by the failing stage is left alive.
type CreationError struct {
	Stage string
	Err   error
}

func (e *CreationError) Error() string {
	return fmt.Sprintf("%s creation failed: %s", e.Stage, e.Err)
}

// Unwrap returns the underlying cause.
func (e *CreationError) Unwrap() error {
	return e.Err
}

// Cause returns the underlying cause.
func (e *CreationError) Cause() error {
	return e.Err
}

// Rejection explains why a physical device was not selected. Err carries
// the typed cause when there is one, such as an ExtensionUnavailableError.
type Rejection struct {
	Device string
	Reason string
	Err    error
}

// NoCapableDeviceError is returned when no physical device passes selection.
type NoCapableDeviceError struct {
	Rejections []Rejection
}

func (e *NoCapableDeviceError) Error() string {
	if len(e.Rejections) == 0 {
		return "no capable device: no physical devices available"
	}
	reasons := make([]string, 0, len(e.Rejections))
	for _, r := range e.Rejections {
		reasons = append(reasons, fmt.Sprintf("%s: %s", r.Device, r.Reason))
	}
	return "no capable device: " + strings.Join(reasons, "; ")
}

// Unwrap returns the typed causes of the rejections, so errors.As can
// find an ExtensionUnavailableError behind a failed selection.
func (e *NoCapableDeviceError) Unwrap() []error {
	var errs []error
	for _, r := range e.Rejections {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return errs
}

// ExtensionUnavailableError is returned when required extensions are not
// supported. Kind is either "instance" or "device".
type ExtensionUnavailableError struct {
	Kind    string
	Missing []string
}

func (e *ExtensionUnavailableError) Error() string {
	return fmt.Sprintf("%s extensions unavailable: %s", e.Kind, strings.Join(e.Missing, ", "))
}

// PresentUnsupportedError is returned when a window's surface cannot be
// presented to from the present family of an already selected device.
type PresentUnsupportedError struct {
	Device string
	Family uint32
}

func (e *PresentUnsupportedError) Error() string {
	return fmt.Sprintf("device %s cannot present to the surface from queue family %d", e.Device, e.Family)
}

// FrameError is a failure during the frame loop or window teardown. It is
// fatal to the window that raised it.
type FrameError struct {
	Step string
	Err  error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("frame %s failed: %s", e.Step, e.Err)
}

// Unwrap returns the underlying cause.
func (e *FrameError) Unwrap() error {
	return e.Err
}

// Cause returns the underlying cause.
func (e *FrameError) Cause() error {
	return e.Err
}
