/*
Package expr implements the small numeric language that cells, the preamble
and the output function of a song are written in.

A source is a list of statements separated by ';' or newlines. Every
statement is an expression, a variable assignment or a function definition:

	tone = 440
	y(x) = 0.5 * sin(tone * tau * x / sr)
	x > 22050 ? 1 : 0

All values are float64; comparisons and logical operators return 1 or 0.
Assignments evaluate to the assigned value and function definitions to NaN.
Variables and user functions share one namespace, so binding a name as one
removes it as the other. Function bodies see the environment at call time.

Builtin constants (pi, tau, ...) and functions (sin, saw, adsr, ...) are
read-only and are not affected by Reset.
*/
package expr
