// Command framez runs a demo frame-paced pipeline and inspects its traces.
package main

func main() {
	Execute()
}
