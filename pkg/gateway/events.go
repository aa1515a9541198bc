package gateway

import (
	"log/slog"

	"github.com/tidwall/gjson"

	"github.com/rhuss/respgw/pkg/api"
	"github.com/rhuss/respgw/pkg/backend"
	"github.com/rhuss/respgw/pkg/xmltool"
)

// HandleEvent maps one backend.Event onto zero or more api.StreamEvents.
// Text and reasoning deltas open their item lazily on first content; tool
// call deltas are gated on the tool call's name being known (see
// toolCallState) before anything is reported to the client at all.
func (t *Translator) HandleEvent(ev backend.Event) []api.StreamEvent {
	switch ev.Type {
	case backend.EventTextDelta:
		return t.handleText(ev.Delta)
	case backend.EventReasoningDelta:
		return t.handleReasoning(ev.Delta)
	case backend.EventToolCallDelta:
		return t.handleToolCall(ev)
	default:
		return nil
	}
}

// handleText feeds the delta through the XML tool-call extractor before
// treating anything as visible text: a recognized <function=NAME>{...}
// </function> marker never reaches the client as text, and is instead
// rewritten into a synthetic function-call item. Markers split across
// chunk boundaries are buffered by the extractor itself.
func (t *Translator) handleText(delta string) []api.StreamEvent {
	if delta == "" {
		return nil
	}

	var events []api.StreamEvent
	for _, seg := range t.xml.Feed(delta) {
		if seg.Call != nil {
			events = append(events, t.emitXMLToolCall(seg.Call)...)
			continue
		}
		events = append(events, t.emitTextDelta(seg.Text)...)
	}
	return events
}

func (t *Translator) emitTextDelta(delta string) []api.StreamEvent {
	if delta == "" {
		return nil
	}

	var events []api.StreamEvent
	if !t.textStarted {
		t.textOutputIndex = t.allocateOutputIndex()
		t.textItem = &api.Item{
			ID:      api.NewItemID(),
			Type:    api.ItemTypeMessage,
			Status:  api.ItemStatusInProgress,
			Message: &api.MessageData{Role: api.RoleAssistant},
		}
		events = append(events,
			api.StreamEvent{Type: api.EventOutputItemAdded, SequenceNumber: t.nextSeq(), Item: t.textItem, OutputIndex: t.textOutputIndex},
			api.StreamEvent{Type: api.EventContentPartAdded, SequenceNumber: t.nextSeq(), Part: &api.OutputContentPart{Type: "output_text"}, ItemID: t.textItem.ID, OutputIndex: t.textOutputIndex},
		)
		t.textStarted = true
	}

	t.text.WriteString(delta)
	events = append(events, api.StreamEvent{
		Type: api.EventOutputTextDelta, SequenceNumber: t.nextSeq(),
		Delta: delta, ItemID: t.textItem.ID, OutputIndex: t.textOutputIndex,
	})
	return events
}

// emitXMLToolCall synthesizes a complete function-call item from a fully
// recovered XML marker: the backend never sends these as discrete chunks,
// so there's no gating on a later name arrival the way handleToolCall has
// to do for native tool_calls — the whole thing is emitted at once.
func (t *Translator) emitXMLToolCall(call *xmltool.Call) []api.StreamEvent {
	idx := t.syntheticToolIndex()
	ts := &toolCallState{
		itemID:      api.NewItemID(),
		outputIndex: t.allocateOutputIndex(),
		callID:      call.ID,
		name:        call.Name,
		began:       true,
		finished:    true,
	}
	ts.args.WriteString(call.Arguments)
	t.toolCalls[idx] = ts
	t.toolOrder = append(t.toolOrder, idx)

	item := &api.Item{
		ID:     ts.itemID,
		Type:   api.ItemTypeFunctionCall,
		Status: api.ItemStatusInProgress,
		FunctionCall: &api.FunctionCallData{
			Name:   ts.name,
			CallID: ts.callID,
		},
	}
	events := []api.StreamEvent{
		{Type: api.EventOutputItemAdded, SequenceNumber: t.nextSeq(), Item: item, OutputIndex: ts.outputIndex},
		{Type: api.EventOutputToolCallBegin, SequenceNumber: t.nextSeq(), Item: item, ItemID: ts.itemID, OutputIndex: ts.outputIndex},
	}
	if call.Arguments != "" {
		events = append(events,
			api.StreamEvent{Type: api.EventFunctionCallArgsDelta, SequenceNumber: t.nextSeq(), Delta: call.Arguments, ItemID: ts.itemID, OutputIndex: ts.outputIndex},
			api.StreamEvent{Type: api.EventOutputToolCallDelta, SequenceNumber: t.nextSeq(), Delta: call.Arguments, ItemID: ts.itemID, OutputIndex: ts.outputIndex},
		)
	}

	doneItem := &api.Item{
		ID:     ts.itemID,
		Type:   api.ItemTypeFunctionCall,
		Status: api.ItemStatusCompleted,
		FunctionCall: &api.FunctionCallData{
			Name:      ts.name,
			CallID:    ts.callID,
			Arguments: ts.args.String(),
		},
	}
	events = append(events,
		api.StreamEvent{Type: api.EventFunctionCallArgsDone, SequenceNumber: t.nextSeq(), Delta: ts.args.String(), ItemID: ts.itemID, OutputIndex: ts.outputIndex},
		api.StreamEvent{Type: api.EventOutputItemDone, SequenceNumber: t.nextSeq(), Item: doneItem, OutputIndex: ts.outputIndex},
		api.StreamEvent{Type: api.EventOutputToolCallEnd, SequenceNumber: t.nextSeq(), Item: doneItem, ItemID: ts.itemID, OutputIndex: ts.outputIndex},
	)
	return events
}

func (t *Translator) handleReasoning(delta string) []api.StreamEvent {
	if delta == "" {
		return nil
	}

	var events []api.StreamEvent
	if !t.reasoningStarted {
		t.reasoningOutputIndex = t.allocateOutputIndex()
		t.reasoningItem = &api.Item{
			ID:        api.NewItemID(),
			Type:      api.ItemTypeReasoning,
			Status:    api.ItemStatusInProgress,
			Reasoning: &api.ReasoningData{},
		}
		events = append(events, api.StreamEvent{
			Type: api.EventOutputItemAdded, SequenceNumber: t.nextSeq(),
			Item: t.reasoningItem, OutputIndex: t.reasoningOutputIndex,
		})
		t.reasoningStarted = true
	}

	t.reasoning.WriteString(delta)
	events = append(events, api.StreamEvent{
		Type: api.EventReasoningDelta, SequenceNumber: t.nextSeq(),
		Delta: delta, ItemID: t.reasoningItem.ID, OutputIndex: t.reasoningOutputIndex,
	})
	return events
}

func (t *Translator) handleToolCall(ev backend.Event) []api.StreamEvent {
	ts, ok := t.toolCalls[ev.ToolCallIndex]
	if !ok {
		ts = &toolCallState{}
		t.toolCalls[ev.ToolCallIndex] = ts
		t.toolOrder = append(t.toolOrder, ev.ToolCallIndex)
	}
	if ev.ToolCallID != "" {
		ts.callID = ev.ToolCallID
	}
	if ev.FunctionName != "" {
		ts.name = ev.FunctionName
	}

	if !ts.began {
		ts.pendingArgs.WriteString(ev.Delta)
		if ts.name == "" {
			// still gating: name hasn't shown up on any chunk yet.
			return nil
		}
		return t.beginToolCall(ts)
	}

	if ev.Delta == "" {
		return nil
	}
	ts.args.WriteString(ev.Delta)
	return []api.StreamEvent{
		{Type: api.EventFunctionCallArgsDelta, SequenceNumber: t.nextSeq(), Delta: ev.Delta, ItemID: ts.itemID, OutputIndex: ts.outputIndex},
		{Type: api.EventOutputToolCallDelta, SequenceNumber: t.nextSeq(), Delta: ev.Delta, ItemID: ts.itemID, OutputIndex: ts.outputIndex},
	}
}

// beginToolCall opens the item once a name is known, flushing whatever
// argument text had accumulated in pendingArgs while gating was in effect.
func (t *Translator) beginToolCall(ts *toolCallState) []api.StreamEvent {
	ts.itemID = api.NewItemID()
	ts.outputIndex = t.allocateOutputIndex()
	ts.began = true

	item := &api.Item{
		ID:     ts.itemID,
		Type:   api.ItemTypeFunctionCall,
		Status: api.ItemStatusInProgress,
		FunctionCall: &api.FunctionCallData{
			Name:   ts.name,
			CallID: ts.callID,
		},
	}

	events := []api.StreamEvent{
		{Type: api.EventOutputItemAdded, SequenceNumber: t.nextSeq(), Item: item, OutputIndex: ts.outputIndex},
		{Type: api.EventOutputToolCallBegin, SequenceNumber: t.nextSeq(), Item: item, ItemID: ts.itemID, OutputIndex: ts.outputIndex},
	}

	buffered := ts.pendingArgs.String()
	ts.pendingArgs.Reset()
	if buffered != "" {
		ts.args.WriteString(buffered)
		events = append(events,
			api.StreamEvent{Type: api.EventFunctionCallArgsDelta, SequenceNumber: t.nextSeq(), Delta: buffered, ItemID: ts.itemID, OutputIndex: ts.outputIndex},
			api.StreamEvent{Type: api.EventOutputToolCallDelta, SequenceNumber: t.nextSeq(), Delta: buffered, ItemID: ts.itemID, OutputIndex: ts.outputIndex},
		)
	}
	return events
}

// Finish closes out every item still open at stream end: the text message,
// the reasoning block, and any tool calls (including one that never saw
// its name arrive, which is begun here with an empty name rather than
// silently dropped). finishReason drives the completed/incomplete status
// carried on the text and reasoning items; tool call items are always
// closed as completed.
func (t *Translator) Finish(finishReason string) []api.StreamEvent {
	var events []api.StreamEvent

	// Flush whatever the XML extractor was still holding back: trailing
	// prose, or a marker that was opened but never closed before the
	// backend's finish_reason arrived.
	for _, seg := range t.xml.Flush() {
		if seg.Call != nil {
			events = append(events, t.emitXMLToolCall(seg.Call)...)
			continue
		}
		events = append(events, t.emitTextDelta(seg.Text)...)
	}

	status := backend.MapFinishReasonToResponseStatus(finishReason)
	itemStatus := api.ItemStatusCompleted
	if status == api.ResponseStatusIncomplete {
		itemStatus = api.ItemStatusIncomplete
	}

	if t.textStarted {
		t.textItem.Status = itemStatus
		t.textItem.Message.Output = []api.OutputContentPart{{Type: "output_text", Text: t.text.String()}}
		events = append(events,
			api.StreamEvent{Type: api.EventOutputTextDone, SequenceNumber: t.nextSeq(), Delta: t.text.String(), ItemID: t.textItem.ID, OutputIndex: t.textOutputIndex},
			api.StreamEvent{Type: api.EventContentPartDone, SequenceNumber: t.nextSeq(), Part: &t.textItem.Message.Output[0], ItemID: t.textItem.ID, OutputIndex: t.textOutputIndex},
			api.StreamEvent{Type: api.EventOutputItemDone, SequenceNumber: t.nextSeq(), Item: t.textItem, OutputIndex: t.textOutputIndex},
		)
	}

	if t.reasoningStarted {
		t.reasoningItem.Status = itemStatus
		t.reasoningItem.Reasoning.Content = t.reasoning.String()
		events = append(events,
			api.StreamEvent{Type: api.EventReasoningDone, SequenceNumber: t.nextSeq(), Delta: t.reasoning.String(), ItemID: t.reasoningItem.ID, OutputIndex: t.reasoningOutputIndex},
			api.StreamEvent{Type: api.EventOutputItemDone, SequenceNumber: t.nextSeq(), Item: t.reasoningItem, OutputIndex: t.reasoningOutputIndex},
		)
	}

	for _, idx := range t.toolOrder {
		ts := t.toolCalls[idx]
		if ts.finished {
			// Already fully emitted at recognition time (see
			// emitXMLToolCall); nothing left to close out here.
			continue
		}
		if !ts.began {
			events = append(events, t.beginToolCall(ts)...)
		}

		argStr := ts.args.String()
		if argStr != "" && !gjson.Valid(argStr) {
			slog.Warn("tool call arguments are not valid JSON at stream end", "call_id", ts.callID, "name", ts.name)
		}

		item := &api.Item{
			ID:     ts.itemID,
			Type:   api.ItemTypeFunctionCall,
			Status: api.ItemStatusCompleted,
			FunctionCall: &api.FunctionCallData{
				Name:      ts.name,
				CallID:    ts.callID,
				Arguments: argStr,
			},
		}
		events = append(events,
			api.StreamEvent{Type: api.EventFunctionCallArgsDone, SequenceNumber: t.nextSeq(), Delta: argStr, ItemID: ts.itemID, OutputIndex: ts.outputIndex},
			api.StreamEvent{Type: api.EventOutputItemDone, SequenceNumber: t.nextSeq(), Item: item, OutputIndex: ts.outputIndex},
			api.StreamEvent{Type: api.EventOutputToolCallEnd, SequenceNumber: t.nextSeq(), Item: item, ItemID: ts.itemID, OutputIndex: ts.outputIndex},
		)
	}

	return events
}

// Items returns the final api.Item values produced by this stream, in
// output order, for assembly into the completed Response.
func (t *Translator) Items() []api.Item {
	slots := make([]*api.Item, t.nextOutputIndex)
	var unbegun []api.Item
	if t.textStarted {
		slots[t.textOutputIndex] = t.textItem
	}
	if t.reasoningStarted {
		slots[t.reasoningOutputIndex] = t.reasoningItem
	}
	for _, idx := range t.toolOrder {
		ts := t.toolCalls[idx]
		item := api.Item{
			ID:     ts.itemID,
			Type:   api.ItemTypeFunctionCall,
			Status: api.ItemStatusCompleted,
			FunctionCall: &api.FunctionCallData{
				Name:      ts.name,
				CallID:    ts.callID,
				Arguments: ts.args.String(),
			},
		}
		if ts.began {
			slots[ts.outputIndex] = &item
		} else {
			unbegun = append(unbegun, item)
		}
	}
	var items []api.Item
	for _, it := range slots {
		if it != nil {
			items = append(items, *it)
		}
	}
	return append(items, unbegun...)
}
