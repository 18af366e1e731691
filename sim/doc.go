// Package sim simulates a BLE DFU bootloader. A Device exposes the DFU
// service through an in-memory GATT database and runs the bootloader's
// state table on every control point and packet write; Dial returns a
// dfu.Link to it.
package sim
