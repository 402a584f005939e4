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
	"strings"

	"github.com/AleutianAI/bytegraph/services/bytegraph/descriptor"
	"github.com/AleutianAI/bytegraph/services/bytegraph/model"
)

// Proxy strategies recorded in proxy_type.
const (
	ProxyJDK   = "jdk_dynamic_proxy"
	ProxyCGLIB = "cglib"
	ProxyNone  = "none"
)

const (
	quartzExecute         = "execute"
	quartzExecuteInternal = "executeInternal"
	quartzContextType     = "org.quartz.JobExecutionContext"
)

// finalizeClass turns the accumulated class metadata into attributes on the
// class node. Steps run in a fixed order so attributes never depend on
// annotation order.
func finalizeClass(c *Context) {
	applyBeanName(c)
	applyBeanAttributes(c)
	applyImplicitInjection(c)
	applyORM(c)
	applyConfigProperties(c)
	applyAspect(c)
	applyClassAsync(c)
	applyClassTransactionAndREST(c)
	applyProxyType(c)
	applyQuartz(c)
	applyEntity(c)
}

func applyBeanName(c *Context) {
	m := &c.meta
	if m.beanType == "" {
		return
	}
	if m.beanName == "" {
		m.beanName = DefaultBeanName(ShortClassName(c.class.FQN))
	}
}

func applyBeanAttributes(c *Context) {
	m, sym := &c.meta, c.class
	if m.beanType != "" {
		sym.SetAttr(model.AttrSpringBeanType, m.beanType)
		sym.SetAttr(model.AttrSpringBeanName, m.beanName)
		if m.scope == "" {
			m.scope = "singleton"
		}
	}
	if m.scope != "" {
		sym.SetAttr(model.AttrSpringScope, m.scope)
	}
	if m.scopeProxy != "" {
		sym.SetAttr(model.AttrSpringScopeProxyMode, m.scopeProxy)
	}
	if m.primary {
		sym.SetAttr(model.AttrIsPrimary, true)
	}
	if m.lazy {
		sym.SetAttr(model.AttrIsLazy, true)
	}
	if len(m.dependsOn) > 0 {
		sym.SetAttr(model.AttrSpringDependsOn, m.dependsOn)
	}
	if m.schedulingEnabled {
		sym.SetAttr(model.AttrSchedulingEnabled, true)
	}
	if m.asyncEnabled {
		sym.SetAttr(model.AttrAsyncEnabled, true)
	}
	if m.txMgmtEnabled {
		sym.SetAttr(model.AttrTransactionMgmtEnable, true)
	}
}

// applyImplicitInjection emits constructor:implicit edges for a Spring
// bean whose only constructor takes parameters and carries no injection
// annotation of its own.
func applyImplicitInjection(c *Context) {
	if c.meta.beanType == "" || len(c.constructors) != 1 {
		return
	}
	ctor := c.constructors[0]
	if len(ctor.params) == 0 || ctor.meta.injection != "" {
		return
	}
	emitConstructorInjection(c, ctor, model.InjectionImplicit)
}

func applyORM(c *Context) {
	m, sym := &c.meta, c.class
	if c.IsInterface() && !m.mybatisMapper && !m.mapstructMapper && hasMapperSuffix(sym.Name) {
		m.mybatisMapper = true
		m.mybatisDetection = DetectionNamePattern
	}
	if m.mybatisMapper {
		sym.SetAttr(model.AttrIsMybatisMapper, true)
		sym.SetAttr(model.AttrMybatisDetection, m.mybatisDetection)
		source := MappingSourceXML
		if c.sqlMethods > 0 {
			source = MappingSourceAnnotation
		}
		sym.SetAttr(model.AttrMybatisMappingSource, source)
	}
	if m.mybatisPlusMapper {
		sym.SetAttr(model.AttrIsMybatisPlusMapper, true)
	}
	if m.mapstructMapper {
		sym.SetAttr(model.AttrIsMapstructMapper, true)
	}
}

func hasMapperSuffix(simpleName string) bool {
	return simpleName != "Mapper" && strings.HasSuffix(simpleName, "Mapper")
}

func applyConfigProperties(c *Context) {
	if c.meta.hasConfig {
		c.class.SetAttr(model.AttrConfigPropsPrefix, c.meta.configPrefix)
	}
}

func applyAspect(c *Context) {
	m := &c.meta
	if m.aspect {
		c.class.SetAttr(model.AttrIsAspect, true)
	}
	if m.hasOrder {
		c.class.SetAttr(model.AttrAspectOrder, m.order)
	}
}

func applyClassAsync(c *Context) {
	if !c.meta.async {
		return
	}
	c.class.SetAttr(model.AttrIsAsync, true)
	if c.meta.asyncExec != "" {
		c.class.SetAttr(model.AttrAsyncExecutor, c.meta.asyncExec)
	}
}

func applyClassTransactionAndREST(c *Context) {
	m, sym := &c.meta, c.class
	if m.transaction != nil {
		sym.SetAttr(model.AttrIsTransactional, true)
		setTransaction(sym, m.transaction)
	}
	if m.restController {
		sym.SetAttr(model.AttrIsRestController, true)
	}
	if m.hasMapping {
		sym.SetAttr(model.AttrBasePath, JoinPath(m.basePath, ""))
		if len(m.baseMethods) > 0 {
			sym.SetAttr(model.AttrBaseHTTPMethods, m.baseMethods)
		}
	}
}

// applyProxyType picks the proxy Spring would create: a JDK dynamic proxy
// when the class has interfaces, else a CGLIB subclass unless the class is
// final.
func applyProxyType(c *Context) {
	if !c.meta.needsProxy {
		return
	}
	proxy := ProxyNone
	switch {
	case len(c.interfaces) > 0:
		proxy = ProxyJDK
	case !c.class.IsFinal:
		proxy = ProxyCGLIB
	}
	c.class.SetAttr(model.AttrNeedsProxy, true)
	c.class.SetAttr(model.AttrProxyType, proxy)
}

func applyQuartz(c *Context) {
	m, sym := &c.meta, c.class
	if m.quartzJobType == "" {
		return
	}
	sym.SetAttr(model.AttrIsQuartzJob, true)
	sym.SetAttr(model.AttrQuartzJobType, m.quartzJobType)
	if m.quartzDisallow {
		sym.SetAttr(model.AttrQuartzDisallowConc, true)
	}
	if m.quartzPersistData {
		sym.SetAttr(model.AttrQuartzPersistJobData, true)
	}
}

func applyEntity(c *Context) {
	m, sym := &c.meta, c.class
	if !m.entity && !m.mappedSuperclass {
		return
	}
	sym.IsEntity = true
	if m.mappedSuperclass {
		sym.SetAttr(model.AttrIsMappedSuperclass, true)
		return
	}
	table := m.entityTable
	if table == "" {
		table = m.entityName
	}
	if table == "" {
		table = sym.Name
	}
	sym.SetAttr(model.AttrEntityTable, table)
}

// finalizeMethod applies method metadata once every annotation of the
// method has been seen.
func finalizeMethod(c *Context, m *Method) {
	mm, sym := &m.meta, m.sym

	if mm.transaction != nil {
		sym.SetAttr(model.AttrIsTransactional, true)
		setTransaction(sym, mm.transaction)
	}

	if mm.adviceType != "" {
		sym.SetAttr(model.AttrAOPAdviceType, mm.adviceType)
		if mm.pointcut != "" {
			sym.SetAttr(model.AttrAOPPointcut, mm.pointcut)
		}
	}

	if mm.async {
		sym.SetAttr(model.AttrIsAsync, true)
		if mm.asyncExec != "" {
			sym.SetAttr(model.AttrAsyncExecutor, mm.asyncExec)
		}
	}

	if mm.bean {
		name := mm.beanName
		if name == "" {
			name = m.name
		}
		sym.SetAttr(model.AttrIsBeanMethod, true)
		sym.SetAttr(model.AttrBeanName, name)
		if mm.initMethod != "" {
			sym.SetAttr(model.AttrBeanInitMethod, mm.initMethod)
		}
		if mm.destroyMethod != "" {
			sym.SetAttr(model.AttrBeanDestroyMethod, mm.destroyMethod)
		}
	}

	if mm.mapping != nil {
		sym.SetAttr(model.AttrAPIPath, JoinPath(c.meta.basePath, mm.mapping.path))
		sym.SetAttr(model.AttrHTTPMethod, httpMethod(mm.mapping.methods, c.meta.baseMethods))
	}

	if s := mm.scheduled; s != nil {
		setNonEmpty(sym, model.AttrScheduledCron, s.cron)
		setNonEmpty(sym, model.AttrScheduledFixedDelay, s.fixedDelay)
		setNonEmpty(sym, model.AttrScheduledFixedRate, s.fixedRate)
		setNonEmpty(sym, model.AttrScheduledInitialDelay, s.initialDelay)
	}

	if mm.sqlOp != "" {
		sym.SetAttr(model.AttrMybatisOperationType, mm.sqlOp)
		setNonEmpty(sym, model.AttrMybatisSQL, mm.sqlText)
	}

	applyInjection(c, m)

	if entry := entryPoint(c, m); entry != "" {
		sym.SetAttr(model.AttrIsEntryPoint, true)
		sym.SetAttr(model.AttrEntryPointType, entry)
	}
	if len(mm.listenerTopics) > 0 {
		sym.SetAttr(model.AttrListenerTopics, mm.listenerTopics)
	}
	setNonEmpty(sym, model.AttrLifecyclePhase, mm.lifecycle)
}

// httpMethod resolves a handler's HTTP method: the mapping's own verb,
// then the controller's, then ANY.
func httpMethod(own, base []string) string {
	if len(own) > 0 {
		return own[0]
	}
	if len(base) > 0 {
		return base[0]
	}
	return HTTPMethodAny
}

// applyInjection emits constructor and setter injection edges for
// annotated constructors and single-argument setters.
func applyInjection(c *Context, m *Method) {
	inj := m.meta.injection
	if inj == "" || inj == model.InjectionValue {
		return
	}
	switch {
	case m.IsConstructor():
		if inj == model.InjectionAutowired || inj == model.InjectionInject {
			emitConstructorInjection(c, m, inj)
		}
	case isSetter(m):
		emitSetterInjection(c, m, inj)
	}
}

func isSetter(m *Method) bool {
	return len(m.name) > 3 && strings.HasPrefix(m.name, "set") && len(m.params) == 1
}

func emitConstructorInjection(c *Context, m *Method, inj model.InjectionType) {
	emitted := false
	for i, p := range m.params {
		e := c.typeEdge(model.ConstructorKind(inj), c.class.FQN, descriptor.ElementType(p), m.sym.LineNumber)
		if e == nil {
			continue
		}
		emitted = true
		e.ParameterIndex = model.Index(i)
		e.Qualifier = m.meta.paramQualifiers[i]
		if v := m.meta.paramValues[i]; v != "" {
			e.SetMeta(model.MetaValueExpression, v)
		}
	}
	if emitted {
		markInjectionPoint(m, inj)
	}
}

func emitSetterInjection(c *Context, m *Method, inj model.InjectionType) {
	e := c.typeEdge(model.SetterKind(inj), c.class.FQN, descriptor.ElementType(m.params[0]), m.sym.LineNumber)
	if e == nil {
		return
	}
	e.ParameterIndex = model.Index(0)
	e.Qualifier = m.meta.qualifier
	if q := m.meta.paramQualifiers[0]; q != "" {
		e.Qualifier = q
	}
	e.SetMeta(model.MetaSetterName, m.name)
	markInjectionPoint(m, inj)
}

func markInjectionPoint(m *Method, inj model.InjectionType) {
	m.sym.SetAttr(model.AttrIsInjectionPoint, true)
	m.sym.SetAttr(model.AttrInjectionType, string(inj))
}

// entryPoint classifies a method as an entry point. The first matching
// rule wins.
func entryPoint(c *Context, m *Method) string {
	mm := &m.meta
	switch {
	case mm.mapping != nil:
		return model.EntryRESTEndpoint
	case mm.scheduled != nil:
		return model.EntryScheduledTask
	case c.meta.quartzJobType == QuartzJobInterface && isQuartzCallback(m, quartzExecute):
		return model.EntryQuartzJob
	case c.meta.quartzJobType == QuartzJobBean && isQuartzCallback(m, quartzExecuteInternal):
		return model.EntrySpringQuartzJob
	case mm.listener != "":
		return mm.listener
	case mm.lifecycle != "":
		return model.EntryLifecycle
	case mm.async:
		return model.EntryAsyncTask
	case mm.bean:
		return model.EntryBeanFactory
	}
	return ""
}

func isQuartzCallback(m *Method, name string) bool {
	return m.name == name && len(m.params) == 1 && m.params[0] == quartzContextType
}

func setTransaction(sym *model.Symbol, tx *txMeta) {
	sym.SetAttr(model.AttrTxPropagation, tx.propagation)
	sym.SetAttr(model.AttrTxIsolation, tx.isolation)
	sym.SetAttr(model.AttrTxTimeout, tx.timeout)
	sym.SetAttr(model.AttrTxReadOnly, tx.readOnly)
	if len(tx.rollbackFor) > 0 {
		sym.SetAttr(model.AttrTxRollbackFor, tx.rollbackFor)
	}
	setNonEmpty(sym, model.AttrTxManager, tx.manager)
}

func setNonEmpty(sym *model.Symbol, key, value string) {
	if value != "" {
		sym.SetAttr(key, value)
	}
}
