// Command finctl inspects and maintains a finanzas database from the shell.
package main

func main() {
	Execute()
}
