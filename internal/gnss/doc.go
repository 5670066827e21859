// Package gnss drives the tracker's GNSS receiver.
//
// Two interchangeable receiver classes are supported behind the Driver
// interface:
//   - a u-blox style module spoken to in UBX over I2C or UART (the
//     "register" module), actively probed and configured;
//   - a plain NMEA module on UART (the "sentence" module), which has no
//     handshake and is assumed present when no register module answers.
//
// Detector finds the attached module once, and re-opens the same transport
// on later power cycles without probing baud rates again.
package gnss
