package server

import (
	"github.com/ggeejehd-eng/mj36/model"
	Logger "github.com/ggeejehd-eng/mj36/utils/log"
)

// PushGateway adapts the view-state engine's outward surfaces (Notifier,
// Controls, Container) onto websocket signal broadcasts. Every connected
// client mirrors the same rendered state, so all pushes fan out to all
// channels.
type PushGateway struct {
	signals *SignalChannels
}

func NewPushGateway(signals *SignalChannels) *PushGateway {
	return &PushGateway{signals: signals}
}

// === viewstate.Notifier ===

func (g *PushGateway) Warn(msg string) {
	Logger.Log.Warn(msg)
	g.notice(msg)
}

func (g *PushGateway) Error(msg string) {
	Logger.Log.Error(msg)
	g.notice(msg)
}

func (g *PushGateway) Info(msg string) {
	Logger.Log.Info(msg)
	g.notice(msg)
}

func (g *PushGateway) notice(msg string) {
	g.signals.PushSignalToAll(&model.Signal{
		SignalType: model.SignalTypeNotice,
		Notice:     msg,
	})
}

// === viewstate.Controls ===

func (g *PushGateway) SetActive(section model.Section) {
	g.signals.PushSignalToAll(&model.Signal{
		SignalType: model.SignalTypeControl,
		Control:    &model.ControlSignal{Section: section, Active: true},
	})
}

func (g *PushGateway) SetVisible(section model.Section, visible bool) {
	g.signals.PushSignalToAll(&model.Signal{
		SignalType: model.SignalTypeControl,
		Control:    &model.ControlSignal{Section: section, Visible: &visible},
	})
}

// SectionContainer returns a viewstate.Container that pushes render signals
// for one section.
func (g *PushGateway) SectionContainer(section model.Section) *sectionContainer {
	return &sectionContainer{gateway: g, section: section}
}

type sectionContainer struct {
	gateway *PushGateway
	section model.Section
}

func (c *sectionContainer) SetContent(content string) {
	c.gateway.signals.PushSignalToAll(&model.Signal{
		SignalType: model.SignalTypeRender,
		Render:     &model.RenderSignal{Section: c.section, Content: content},
	})
}
