// Package sensor decodes the characteristic records sent by BLE health and
// fitness sensors.
//
// The numeric building blocks are the IEEE-11073 SFLOAT (16 bit) and FLOAT
// (32 bit) encodings and the 7 byte date-time stamp. The composite records
// (cycling speed and cadence, running speed and cadence, blood pressure and
// temperature) start with a flags byte whose bits select which optional fields
// follow. Fields are little-endian and appear in a fixed order per record type.
//
// Decoders never panic on short input; they return a *DecodeError. Comparison
// against an expected record only looks at the fields the flags mark as
// present, and Compare reports every mismatch at once in a *ValidationError.
package sensor
