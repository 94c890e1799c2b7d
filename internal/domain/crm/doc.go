// Package crm contiene las reglas puras de unificación: normalización de identidad,
// política de fusión, tabla de estados de pedido, tabla de bundles, ciclo de vida
// y clasificación por unidad de negocio. No accede a persistencia.
package crm
