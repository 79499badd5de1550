package main

import (
	"fmt"
	"io"
)

// console muestra los toasts y la navegación del gate en la terminal.
type console struct {
	out    io.Writer
	errOut io.Writer
	route  string
}

func (c *console) Success(msg string) { fmt.Fprintln(c.out, "✔ "+msg) }

func (c *console) Error(msg string) { fmt.Fprintln(c.errOut, "✘ "+msg) }

func (c *console) Navigate(route string) {
	c.route = route
	fmt.Fprintln(c.out, "→ "+route)
}
