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

// BuiltinHandlers returns a fresh instance of every built-in handler
// family, in registration order.
func BuiltinHandlers() []Handler {
	return []Handler{
		newStereotypeHandler(),
		newBeanMethodHandler(),
		newInjectionHandler(),
		newRequestMappingHandler(),
		newTransactionalHandler(),
		newAOPHandler(),
		newAsyncHandler(),
		newScheduledHandler(),
		newQuartzHandler(),
		newMapperHandler(),
		newEntityHandler(),
		newBeanModifierHandler(),
		newConfigPropertiesHandler(),
		newListenerHandler(),
		newEnablerHandler(),
	}
}

// DefaultRegistry returns a registry holding every built-in handler.
func DefaultRegistry() *Registry {
	return NewRegistry(BuiltinHandlers()...)
}
