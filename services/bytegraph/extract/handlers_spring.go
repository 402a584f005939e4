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
)

// Built-in handler priorities. Families never share a descriptor, so the
// values only matter against custom handlers.
const (
	PriorityStereotype   = 100
	PriorityInjection    = 90
	PriorityWeb          = 80
	PriorityTransaction  = 70
	PriorityAOP          = 60
	PriorityScheduling   = 50
	PriorityORM          = 40
	PriorityBeanModifier = 30
	PriorityLifecycle    = 20
	PriorityEnabler      = 10
)

// Spring core descriptors.
const (
	descComponent      = "Lorg/springframework/stereotype/Component;"
	descService        = "Lorg/springframework/stereotype/Service;"
	descRepository     = "Lorg/springframework/stereotype/Repository;"
	descController     = "Lorg/springframework/stereotype/Controller;"
	descRestController = "Lorg/springframework/web/bind/annotation/RestController;"
	descConfiguration  = "Lorg/springframework/context/annotation/Configuration;"

	descPrimary          = "Lorg/springframework/context/annotation/Primary;"
	descLazy             = "Lorg/springframework/context/annotation/Lazy;"
	descScope            = "Lorg/springframework/context/annotation/Scope;"
	descDependsOn        = "Lorg/springframework/context/annotation/DependsOn;"
	descRequestScope     = "Lorg/springframework/web/context/annotation/RequestScope;"
	descSessionScope     = "Lorg/springframework/web/context/annotation/SessionScope;"
	descApplicationScope = "Lorg/springframework/web/context/annotation/ApplicationScope;"

	descConfigProperties = "Lorg/springframework/boot/context/properties/ConfigurationProperties;"

	descEnableAsync      = "Lorg/springframework/scheduling/annotation/EnableAsync;"
	descEnableScheduling = "Lorg/springframework/scheduling/annotation/EnableScheduling;"
	descEnableTxMgmt     = "Lorg/springframework/transaction/annotation/EnableTransactionManagement;"

	descAsync     = "Lorg/springframework/scheduling/annotation/Async;"
	descScheduled = "Lorg/springframework/scheduling/annotation/Scheduled;"
	descBean      = "Lorg/springframework/context/annotation/Bean;"

	descSpringTransactional  = "Lorg/springframework/transaction/annotation/Transactional;"
	descJavaxTransactional   = "Ljavax/transaction/Transactional;"
	descJakartaTransactional = "Ljakarta/transaction/Transactional;"
)

// Spring bean types recorded in spring_bean_type.
const (
	BeanTypeComponent      = "component"
	BeanTypeService        = "service"
	BeanTypeRepository     = "repository"
	BeanTypeController     = "controller"
	BeanTypeRestController = "rest_controller"
	BeanTypeConfiguration  = "configuration"
)

var stereotypeBeanTypes = map[string]string{
	descComponent:      BeanTypeComponent,
	descService:        BeanTypeService,
	descRepository:     BeanTypeRepository,
	descController:     BeanTypeController,
	descRestController: BeanTypeRestController,
	descConfiguration:  BeanTypeConfiguration,
}

// stereotypeHandler marks Spring component classes.
type stereotypeHandler struct{ descriptorSet }

func newStereotypeHandler() *stereotypeHandler {
	return &stereotypeHandler{newDescriptorSet("spring_stereotype", PriorityStereotype,
		descComponent, descService, descRepository, descController, descRestController, descConfiguration)}
}

func (h *stereotypeHandler) HandleClass(ctx *Context, desc string) classfile.AnnotationVisitor {
	m := &ctx.meta
	if m.beanType == "" {
		m.beanType = stereotypeBeanTypes[desc]
	}
	if desc == descRestController {
		m.restController = true
	}
	return collect(func(a Attrs) {
		if m.beanName == "" {
			m.beanName = a.String("value")
		}
		if desc == descConfiguration {
			// proxyBeanMethods=false switches off the CGLIB subclass.
			if proxied, ok := a.Bool("proxyBeanMethods"); !ok || proxied {
				m.needsProxy = true
			}
		}
	})
}

// beanModifierHandler records @Primary, @Lazy, @Scope and @DependsOn.
type beanModifierHandler struct{ descriptorSet }

func newBeanModifierHandler() *beanModifierHandler {
	return &beanModifierHandler{newDescriptorSet("spring_bean_modifier", PriorityBeanModifier,
		descPrimary, descLazy, descScope, descDependsOn, descRequestScope, descSessionScope, descApplicationScope)}
}

var webScopes = map[string]string{
	descRequestScope:     "request",
	descSessionScope:     "session",
	descApplicationScope: "application",
}

func (h *beanModifierHandler) HandleClass(ctx *Context, desc string) classfile.AnnotationVisitor {
	m := &ctx.meta
	switch desc {
	case descPrimary:
		m.primary = true
		return nil
	case descLazy:
		return collect(func(a Attrs) {
			lazy, ok := a.Bool("value")
			m.lazy = !ok || lazy
		})
	case descDependsOn:
		return collect(func(a Attrs) {
			m.dependsOn = append(m.dependsOn, a.Strings("value")...)
		})
	case descScope:
		return collect(func(a Attrs) {
			m.scope = a.FirstString("value", "scopeName")
			m.scopeProxy = a.String("proxyMode")
			if m.scope == "" {
				m.scope = "singleton"
			}
		})
	}
	// Web scope shortcuts proxy the target class unless told otherwise.
	scope := webScopes[desc]
	return collect(func(a Attrs) {
		m.scope = scope
		m.scopeProxy = a.String("proxyMode")
		if m.scopeProxy == "" && scope != "application" {
			m.scopeProxy = "TARGET_CLASS"
		}
	})
}

// configPropertiesHandler records @ConfigurationProperties prefixes.
type configPropertiesHandler struct{ descriptorSet }

func newConfigPropertiesHandler() *configPropertiesHandler {
	return &configPropertiesHandler{newDescriptorSet("spring_config_properties", PriorityBeanModifier, descConfigProperties)}
}

func (h *configPropertiesHandler) HandleClass(ctx *Context, desc string) classfile.AnnotationVisitor {
	m := &ctx.meta
	m.hasConfig = true
	return collect(func(a Attrs) {
		if m.configPrefix == "" {
			m.configPrefix = a.FirstString("prefix", "value")
		}
	})
}

// enablerHandler records the @Enable* switches of configuration classes.
type enablerHandler struct{ descriptorSet }

func newEnablerHandler() *enablerHandler {
	return &enablerHandler{newDescriptorSet("spring_enabler", PriorityEnabler,
		descEnableAsync, descEnableScheduling, descEnableTxMgmt)}
}

func (h *enablerHandler) HandleClass(ctx *Context, desc string) classfile.AnnotationVisitor {
	switch desc {
	case descEnableAsync:
		ctx.meta.asyncEnabled = true
	case descEnableScheduling:
		ctx.meta.schedulingEnabled = true
	case descEnableTxMgmt:
		ctx.meta.txMgmtEnabled = true
	}
	return nil
}

// asyncHandler records @Async on classes and methods.
type asyncHandler struct{ descriptorSet }

func newAsyncHandler() *asyncHandler {
	return &asyncHandler{newDescriptorSet("spring_async", PriorityScheduling, descAsync)}
}

func (h *asyncHandler) HandleClass(ctx *Context, desc string) classfile.AnnotationVisitor {
	m := &ctx.meta
	m.async = true
	m.needsProxy = true
	return collect(func(a Attrs) {
		m.asyncExec = a.String("value")
	})
}

func (h *asyncHandler) HandleMethod(ctx *Context, method *Method, desc string) classfile.AnnotationVisitor {
	mm := &method.meta
	mm.async = true
	ctx.meta.needsProxy = true
	return collect(func(a Attrs) {
		mm.asyncExec = a.String("value")
	})
}

// scheduledHandler records @Scheduled triggers.
type scheduledHandler struct{ descriptorSet }

func newScheduledHandler() *scheduledHandler {
	return &scheduledHandler{newDescriptorSet("spring_scheduled", PriorityScheduling, descScheduled)}
}

func (h *scheduledHandler) HandleMethod(ctx *Context, method *Method, desc string) classfile.AnnotationVisitor {
	if method.meta.scheduled != nil {
		// Repeated @Scheduled: the first trigger is recorded.
		return nil
	}
	s := &scheduledMeta{}
	method.meta.scheduled = s
	return collect(func(a Attrs) {
		s.cron = a.String("cron")
		s.fixedDelay = a.FirstString("fixedDelay", "fixedDelayString")
		s.fixedRate = a.FirstString("fixedRate", "fixedRateString")
		s.initialDelay = a.FirstString("initialDelay", "initialDelayString")
	})
}

// beanMethodHandler records @Bean factory methods.
type beanMethodHandler struct{ descriptorSet }

func newBeanMethodHandler() *beanMethodHandler {
	return &beanMethodHandler{newDescriptorSet("spring_bean_method", PriorityStereotype, descBean)}
}

func (h *beanMethodHandler) HandleMethod(ctx *Context, method *Method, desc string) classfile.AnnotationVisitor {
	mm := &method.meta
	mm.bean = true
	ctx.meta.needsProxy = true
	return collect(func(a Attrs) {
		mm.beanName = a.FirstString("name", "value")
		mm.initMethod = a.String("initMethod")
		mm.destroyMethod = a.String("destroyMethod")
	})
}

// transactionalHandler records Spring, javax and jakarta @Transactional.
type transactionalHandler struct{ descriptorSet }

func newTransactionalHandler() *transactionalHandler {
	return &transactionalHandler{newDescriptorSet("transactional", PriorityTransaction,
		descSpringTransactional, descJavaxTransactional, descJakartaTransactional)}
}

func (h *transactionalHandler) HandleClass(ctx *Context, desc string) classfile.AnnotationVisitor {
	ctx.meta.needsProxy = true
	return collect(func(a Attrs) {
		ctx.meta.transaction = txFromAttrs(desc, a)
	})
}

func (h *transactionalHandler) HandleMethod(ctx *Context, method *Method, desc string) classfile.AnnotationVisitor {
	ctx.meta.needsProxy = true
	return collect(func(a Attrs) {
		method.meta.transaction = txFromAttrs(desc, a)
	})
}

// txFromAttrs fills in the defaults of the annotation's flavour for
// absent elements.
func txFromAttrs(desc string, a Attrs) *txMeta {
	tx := &txMeta{propagation: "REQUIRED", isolation: "DEFAULT", timeout: -1}
	if desc != descSpringTransactional {
		// JTA: value is a TxType, rollbackOn lists exception classes.
		if v := a.String("value"); v != "" {
			tx.propagation = v
		}
		tx.rollbackFor = a.Strings("rollbackOn")
		return tx
	}
	if v := a.String("propagation"); v != "" {
		tx.propagation = v
	}
	if v := a.String("isolation"); v != "" {
		tx.isolation = v
	}
	if v, ok := a.Int("timeout"); ok {
		tx.timeout = v
	}
	tx.readOnly, _ = a.Bool("readOnly")
	tx.rollbackFor = append(a.Strings("rollbackFor"), a.Strings("rollbackForClassName")...)
	tx.manager = a.FirstString("transactionManager", "value")
	return tx
}
