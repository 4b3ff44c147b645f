// Package relay contains the domain model of the antenna relay controller.
//
// A Snapshot owns the Pin Registry (every physical line with its I/O class,
// bank index and interlock guards) and the Button Catalog (groups of mutually
// exclusive buttons). Buttons refer to pins by name only; names are resolved
// through the registry on demand so a reload never leaves dangling references.
package relay
