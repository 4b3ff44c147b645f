// Package serial runs a line-oriented command terminal on a serial port.
//
// A newline submits the buffered line, backspace erases one character and
// carriage returns are ignored. Lines are capped at MaxLineLength characters;
// extra input is dropped until the next newline. Each submitted command is
// answered with its JSON result on a line of its own.
package serial
