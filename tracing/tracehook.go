package tracing

import (
	"fmt"

	"github.com/sarchlab/ecusim/comm/medium"
	"github.com/sarchlab/ecusim/comm/messaging"
	"github.com/sarchlab/ecusim/comm/physical"
	"github.com/sarchlab/ecusim/comm/transport"
	"github.com/sarchlab/ecusim/sim"
)

// NamedHookable is a hookable domain with a name.
type NamedHookable interface {
	sim.Named
	sim.Hookable
}

// CollectTrace lets the tracer collect the tasks of a domain. The bus reports
// frame transmissions. Physical and transport layers report dropped frames,
// expired reassemblies and completed messages.
func CollectTrace(domain NamedHookable, tracer Tracer) {
	domain.AcceptHook(&traceHook{
		t:        tracer,
		location: domain.Name(),
	})
}

// A traceHook is a hook that converts hook invocations to tasks.
type traceHook struct {
	t        Tracer
	location string
}

// Func calls the tracer interfaces when the hook is triggered. The tracer
// stamps the times.
func (h *traceHook) Func(ctx sim.HookCtx) {
	switch ctx.Pos {
	case medium.HookPosFrameStart:
		h.t.StartTask(frameTask(KindFrame, ctx.Item, ""))
	case medium.HookPosFrameDelivered:
		h.t.EndTask(frameTask(KindFrame, ctx.Item, ""))
	case physical.HookPosFrameFiltered:
		h.instant(frameTask(KindFrameFiltered, ctx.Item, h.location))
	case transport.HookPosSegmentFiltered:
		h.instant(frameTask(KindSegmentFiltered, ctx.Item, h.location))
	case transport.HookPosReassemblyTimeout:
		t := ctx.Detail.(*transport.ReassemblyTimeout)
		h.instant(Task{
			ID:       "timeout-" + t.Key.String(),
			Kind:     KindReassemblyTimeout,
			What:     fmt.Sprintf("%d/%d segments", t.Received, t.Total),
			Location: h.location,
		})
	case transport.HookPosMessageReassembled:
		m := ctx.Item.(*messaging.Message)
		h.instant(Task{
			ID:       fmt.Sprintf("msg-%s-0x%x", m.SenderID, uint32(m.MessageID)),
			Kind:     KindMessage,
			What:     fmt.Sprintf("0x%x", uint32(m.MessageID)),
			Location: h.location,
			Bytes:    m.Len(),
		})
	}
}

func (h *traceHook) instant(task Task) {
	h.t.StartTask(task)
	h.t.EndTask(task)
}

// frameTask describes a frame. Without a location, the frame is located at
// its sender.
func frameTask(kind string, item interface{}, location string) Task {
	f := item.(messaging.Frame).Meta()

	if location == "" {
		location = string(f.Src)
	}

	return Task{
		ID:       f.ID,
		Kind:     kind,
		What:     fmt.Sprintf("0x%x", uint32(f.MessageID)),
		Location: location,
		Bytes:    f.Len(),
	}
}
