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

	"github.com/AleutianAI/bytegraph/services/bytegraph/classfile"
)

// ORM descriptors.
const (
	descMybatisMapper   = "Lorg/apache/ibatis/annotations/Mapper;"
	descMapstructMapper = "Lorg/mapstruct/Mapper;"
	descSelect          = "Lorg/apache/ibatis/annotations/Select;"
	descInsert          = "Lorg/apache/ibatis/annotations/Insert;"
	descUpdate          = "Lorg/apache/ibatis/annotations/Update;"
	descDelete          = "Lorg/apache/ibatis/annotations/Delete;"
	descSelectProvider  = "Lorg/apache/ibatis/annotations/SelectProvider;"
	descInsertProvider  = "Lorg/apache/ibatis/annotations/InsertProvider;"
	descUpdateProvider  = "Lorg/apache/ibatis/annotations/UpdateProvider;"
	descDeleteProvider  = "Lorg/apache/ibatis/annotations/DeleteProvider;"

	descJavaxEntity             = "Ljavax/persistence/Entity;"
	descJakartaEntity           = "Ljakarta/persistence/Entity;"
	descJavaxTable              = "Ljavax/persistence/Table;"
	descJakartaTable            = "Ljakarta/persistence/Table;"
	descJavaxMappedSuperclass   = "Ljavax/persistence/MappedSuperclass;"
	descJakartaMappedSuperclass = "Ljakarta/persistence/MappedSuperclass;"
)

// MyBatis detection methods recorded in mybatis_detection_method.
const (
	DetectionAnnotation  = "annotation"
	DetectionNamePattern = "name_pattern"
	DetectionInheritance = "inheritance"
)

// Mapping sources recorded in mybatis_mapping_source.
const (
	MappingSourceAnnotation = "annotation"
	MappingSourceXML        = "xml"
)

// SQL operation types.
const (
	SQLSelect = "SELECT"
	SQLInsert = "INSERT"
	SQLUpdate = "UPDATE"
	SQLDelete = "DELETE"
)

var sqlOperations = map[string]string{
	descSelect:         SQLSelect,
	descInsert:         SQLInsert,
	descUpdate:         SQLUpdate,
	descDelete:         SQLDelete,
	descSelectProvider: SQLSelect,
	descInsertProvider: SQLInsert,
	descUpdateProvider: SQLUpdate,
	descDeleteProvider: SQLDelete,
}

// mapperHandler distinguishes the MyBatis and MapStruct @Mapper
// annotations and records MyBatis SQL annotations.
type mapperHandler struct{ descriptorSet }

func newMapperHandler() *mapperHandler {
	return &mapperHandler{newDescriptorSet("orm_mapper", PriorityORM,
		descMybatisMapper, descMapstructMapper, descSelect, descInsert, descUpdate, descDelete,
		descSelectProvider, descInsertProvider, descUpdateProvider, descDeleteProvider)}
}

func (h *mapperHandler) HandleClass(ctx *Context, desc string) classfile.AnnotationVisitor {
	m := &ctx.meta
	switch desc {
	case descMybatisMapper:
		m.mybatisMapper = true
		m.mapstructMapper = false
		m.mybatisDetection = DetectionAnnotation
	case descMapstructMapper:
		m.mapstructMapper = true
		m.mybatisMapper = false
		m.mybatisPlusMapper = false
		m.mybatisDetection = ""
	}
	return nil
}

func (h *mapperHandler) HandleMethod(ctx *Context, method *Method, desc string) classfile.AnnotationVisitor {
	op, ok := sqlOperations[desc]
	if !ok {
		return nil
	}
	mm := &method.meta
	mm.sqlOp = op
	ctx.sqlMethods++
	provider := strings.HasSuffix(desc, "Provider;")
	return collect(func(a Attrs) {
		if provider {
			typ := a.FirstString("type", "value")
			if name := a.String("method"); name != "" {
				typ += "#" + name
			}
			mm.sqlText = typ
			return
		}
		mm.sqlText = strings.Join(a.Strings("value"), " ")
	})
}

// entityHandler records JPA entities and their tables.
type entityHandler struct{ descriptorSet }

func newEntityHandler() *entityHandler {
	return &entityHandler{newDescriptorSet("jpa_entity", PriorityORM,
		descJavaxEntity, descJakartaEntity, descJavaxTable, descJakartaTable,
		descJavaxMappedSuperclass, descJakartaMappedSuperclass)}
}

func (h *entityHandler) HandleClass(ctx *Context, desc string) classfile.AnnotationVisitor {
	m := &ctx.meta
	switch desc {
	case descJavaxEntity, descJakartaEntity:
		m.entity = true
		return collect(func(a Attrs) {
			m.entityName = a.String("name")
		})
	case descJavaxTable, descJakartaTable:
		return collect(func(a Attrs) {
			table := a.String("name")
			if schema := a.String("schema"); schema != "" && table != "" {
				table = schema + "." + table
			}
			m.entityTable = table
		})
	case descJavaxMappedSuperclass, descJakartaMappedSuperclass:
		m.mappedSuperclass = true
	}
	return nil
}
