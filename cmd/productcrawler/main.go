package main

import (
	cmd "github.com/rohmanhakim/product-crawler/internal/cli"
)

func main() {
	cmd.Execute()
}
