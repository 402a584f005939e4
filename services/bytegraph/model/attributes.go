// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package model

// Class attribute keys.
const (
	AttrSpringBeanType        = "spring_bean_type"
	AttrSpringBeanName        = "spring_bean_name"
	AttrSpringScope           = "spring_scope"
	AttrSpringScopeProxyMode  = "spring_scope_proxy_mode"
	AttrSpringDependsOn       = "spring_depends_on"
	AttrIsPrimary             = "is_primary"
	AttrIsLazy                = "is_lazy"
	AttrIsMybatisMapper       = "is_mybatis_mapper"
	AttrIsMybatisPlusMapper   = "is_mybatis_plus_mapper"
	AttrIsMapstructMapper     = "is_mapstruct_mapper"
	AttrMybatisDetection      = "mybatis_detection_method"
	AttrMybatisMappingSource  = "mybatis_mapping_source"
	AttrConfigPropsPrefix     = "config_properties_prefix"
	AttrIsAspect              = "is_aspect"
	AttrAspectOrder           = "aspect_order"
	AttrNeedsProxy            = "needs_proxy"
	AttrProxyType             = "proxy_type"
	AttrIsQuartzJob           = "is_quartz_job"
	AttrQuartzJobType         = "quartz_job_type"
	AttrQuartzDisallowConc    = "quartz_disallow_concurrent"
	AttrQuartzPersistJobData  = "quartz_persist_job_data"
	AttrIsRestController      = "is_rest_controller"
	AttrBasePath              = "base_path"
	AttrBaseHTTPMethods       = "base_http_methods"
	AttrIsTransactional       = "is_transactional"
	AttrEntityTable           = "entity_table"
	AttrIsMappedSuperclass    = "is_mapped_superclass"
	AttrSchedulingEnabled     = "is_scheduling_enabled"
	AttrAsyncEnabled          = "is_async_enabled"
	AttrTransactionMgmtEnable = "is_transaction_management_enabled"
)

// Attribute keys shared by classes and methods.
const (
	AttrIsAsync       = "is_async"
	AttrAsyncExecutor = "async_executor"
	AttrTxPropagation = "transaction_propagation"
	AttrTxIsolation   = "transaction_isolation"
	AttrTxTimeout     = "transaction_timeout"
	AttrTxReadOnly    = "transaction_read_only"
	AttrTxRollbackFor = "transaction_rollback_for"
	AttrTxManager     = "transaction_manager"
)

// Method attribute keys.
const (
	AttrAOPAdviceType         = "aop_advice_type"
	AttrAOPPointcut           = "aop_pointcut"
	AttrIsBeanMethod          = "is_bean_method"
	AttrBeanName              = "bean_name"
	AttrBeanInitMethod        = "bean_init_method"
	AttrBeanDestroyMethod     = "bean_destroy_method"
	AttrAPIPath               = "api_path"
	AttrHTTPMethod            = "http_method"
	AttrScheduledCron         = "scheduled_cron"
	AttrScheduledFixedDelay   = "scheduled_fixed_delay"
	AttrScheduledFixedRate    = "scheduled_fixed_rate"
	AttrScheduledInitialDelay = "scheduled_initial_delay"
	AttrMybatisOperationType  = "mybatis_operation_type"
	AttrMybatisSQL            = "mybatis_sql"
	AttrIsEntryPoint          = "is_entry_point"
	AttrEntryPointType        = "entry_point_type"
	AttrIsInjectionPoint      = "is_injection_point"
	AttrInjectionType         = "injection_type"
	AttrListenerTopics        = "listener_destinations"
	AttrLifecyclePhase        = "lifecycle_phase"
)

// Edge metadata keys.
const (
	MetaMybatisPlusOperation = "mybatis_plus_operation_type"
	MetaFieldName            = "field_name"
	MetaFieldType            = "field_type"
	MetaIsStatic             = "is_static"
	MetaSetterName           = "setter_name"
	MetaBootstrap            = "bootstrap"
	MetaInterfaceCall        = "interface_call"
	MetaValueExpression      = "value_expression"
)

// Entry point types.
const (
	EntryRESTEndpoint    = "rest_endpoint"
	EntryScheduledTask   = "scheduled_task"
	EntryAsyncTask       = "async_task"
	EntryBeanFactory     = "bean_factory"
	EntryQuartzJob       = "quartz_job"
	EntrySpringQuartzJob = "spring_quartz_job"
	EntryEventListener   = "event_listener"
	EntryMessageListener = "message_listener"
	EntryLifecycle       = "lifecycle"
)
