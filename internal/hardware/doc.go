// Package hardware implements the raw I/O Backend consumed by the engine.
//
// A board is described by a Layout: a closed set of banks, each either an
// Output bank (class, pin count, offset on its expander port) or an Input
// bank (class, line count). The Memory backend keeps levels in RAM for tests
// and bench runs; the Board backend drives outputs through I2C port expanders
// and reads inputs from GPIO lines.
package hardware
