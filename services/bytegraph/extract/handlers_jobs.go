// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extract

import (
	"github.com/AleutianAI/bytegraph/services/bytegraph/classfile"
	"github.com/AleutianAI/bytegraph/services/bytegraph/model"
)

// Scheduler, messaging and lifecycle descriptors.
const (
	descDisallowConcurrent = "Lorg/quartz/DisallowConcurrentExecution;"
	descPersistJobData     = "Lorg/quartz/PersistJobDataAfterExecution;"

	descEventListener        = "Lorg/springframework/context/event/EventListener;"
	descTxEventListener      = "Lorg/springframework/transaction/event/TransactionalEventListener;"
	descKafkaListener        = "Lorg/springframework/kafka/annotation/KafkaListener;"
	descRabbitListener       = "Lorg/springframework/amqp/rabbit/annotation/RabbitListener;"
	descJmsListener          = "Lorg/springframework/jms/annotation/JmsListener;"
	descJavaxPostConstruct   = "Ljavax/annotation/PostConstruct;"
	descJakartaPostConstruct = "Ljakarta/annotation/PostConstruct;"
	descJavaxPreDestroy      = "Ljavax/annotation/PreDestroy;"
	descJakartaPreDestroy    = "Ljakarta/annotation/PreDestroy;"
)

// Lifecycle phases recorded in lifecycle_phase.
const (
	PhasePostConstruct = "post_construct"
	PhasePreDestroy    = "pre_destroy"
)

// quartzHandler records Quartz job execution flags.
type quartzHandler struct{ descriptorSet }

func newQuartzHandler() *quartzHandler {
	return &quartzHandler{newDescriptorSet("quartz", PriorityScheduling, descDisallowConcurrent, descPersistJobData)}
}

func (h *quartzHandler) HandleClass(ctx *Context, desc string) classfile.AnnotationVisitor {
	switch desc {
	case descDisallowConcurrent:
		ctx.meta.quartzDisallow = true
	case descPersistJobData:
		ctx.meta.quartzPersistData = true
	}
	return nil
}

// listenerHandler marks event, message and lifecycle callbacks as entry
// points.
type listenerHandler struct{ descriptorSet }

func newListenerHandler() *listenerHandler {
	return &listenerHandler{newDescriptorSet("listener", PriorityLifecycle,
		descEventListener, descTxEventListener, descKafkaListener, descRabbitListener, descJmsListener,
		descJavaxPostConstruct, descJakartaPostConstruct, descJavaxPreDestroy, descJakartaPreDestroy)}
}

func (h *listenerHandler) HandleMethod(ctx *Context, method *Method, desc string) classfile.AnnotationVisitor {
	mm := &method.meta
	switch desc {
	case descJavaxPostConstruct, descJakartaPostConstruct:
		mm.lifecycle = PhasePostConstruct
		return nil
	case descJavaxPreDestroy, descJakartaPreDestroy:
		mm.lifecycle = PhasePreDestroy
		return nil
	case descEventListener, descTxEventListener:
		mm.listener = model.EntryEventListener
		return collect(func(a Attrs) {
			topics := a.Strings("classes")
			if len(topics) == 0 {
				topics = a.Strings("value")
			}
			if len(topics) == 0 && len(method.params) > 0 {
				topics = []string{method.params[0]}
			}
			mm.listenerTopics = topics
		})
	}

	mm.listener = model.EntryMessageListener
	return collect(func(a Attrs) {
		switch desc {
		case descKafkaListener:
			mm.listenerTopics = a.Strings("topics")
		case descRabbitListener:
			mm.listenerTopics = a.Strings("queues")
		case descJmsListener:
			mm.listenerTopics = a.Strings("destination")
		}
	})
}
