// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"github.com/devblok/paphos/gfx"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// EntryPoint is the shader entry point of both stages.
const EntryPoint = "main"

// PipelineState is the render pass, pipeline layout and graphics pipeline
// of one window.
type PipelineState struct {
	dev *Device

	RenderPass gfx.RenderPass
	Layout     gfx.PipelineLayout
	Pipeline   gfx.Pipeline
}

// CreatePipeline builds the render pass and graphics pipeline for the
// swapchain. Shader modules only live for the duration of the call.
func CreatePipeline(dev *Device, sc *SwapchainState, vertex, fragment []byte, logger log.FieldLogger) (*PipelineState, error) {
	driver := dev.driver
	logger = logger.WithField("component", "pipeline")
	ps := &PipelineState{dev: dev}

	pass, err := driver.CreateRenderPass(dev.Handle, gfx.RenderPassInfo{ColorFormat: sc.Format})
	if err != nil {
		return nil, &CreationError{Stage: StageRenderPass, Err: errors.Wrap(err, "vk.CreateRenderPass()")}
	}
	ps.RenderPass = pass

	layout, err := driver.CreatePipelineLayout(dev.Handle)
	if err != nil {
		ps.Release()
		return nil, &CreationError{Stage: StageLayout, Err: errors.Wrap(err, "vk.CreatePipelineLayout()")}
	}
	ps.Layout = layout

	var modules ReleaseStack
	defer modules.Release()

	stages := make([]gfx.ShaderStageInfo, 0, 2)
	for _, s := range []struct {
		stage gfx.ShaderStage
		code  []byte
	}{
		{gfx.StageVertex, vertex},
		{gfx.StageFragment, fragment},
	} {
		module, err := driver.CreateShaderModule(dev.Handle, s.code)
		if err != nil {
			modules.Release()
			ps.Release()
			return nil, &CreationError{Stage: StageShaderModule, Err: errors.Wrapf(err, "vk.CreateShaderModule(%s)", s.stage)}
		}
		modules.PushFunc(func() { driver.DestroyShaderModule(dev.Handle, module) })
		stages = append(stages, gfx.ShaderStageInfo{Stage: s.stage, Module: module, EntryPoint: EntryPoint})
	}

	pipeline, err := driver.CreateGraphicsPipeline(dev.Handle, gfx.GraphicsPipelineInfo{
		Stages:     stages,
		Extent:     sc.Extent,
		Layout:     layout,
		RenderPass: pass,
	})
	if err != nil {
		modules.Release()
		ps.Release()
		return nil, &CreationError{Stage: StagePipeline, Err: errors.Wrap(err, "vk.CreateGraphicsPipelines()")}
	}
	ps.Pipeline = pipeline

	logger.WithField("extent", sc.Extent).Debug("pipeline created")
	return ps, nil
}

// Release destroys the pipeline, the layout and the render pass.
func (p *PipelineState) Release() {
	driver := p.dev.driver
	if p.Pipeline != 0 {
		driver.DestroyPipeline(p.dev.Handle, p.Pipeline)
		p.Pipeline = 0
	}
	if p.Layout != 0 {
		driver.DestroyPipelineLayout(p.dev.Handle, p.Layout)
		p.Layout = 0
	}
	if p.RenderPass != 0 {
		driver.DestroyRenderPass(p.dev.Handle, p.RenderPass)
		p.RenderPass = 0
	}
}
