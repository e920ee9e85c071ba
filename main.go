package main

import (
	"fmt"

	_ "github.com/stagio/go-common/cache"
	_ "github.com/stagio/go-common/logger"
	_ "github.com/stagio/go-common/resilience"
)

func main() {
	fmt.Println("Hi")
}
