package main

import (
	"fmt"

	_ "github.com/clinicboost/go-common/cache"
	_ "github.com/clinicboost/go-common/dsr"
	_ "github.com/clinicboost/go-common/logger"
	_ "github.com/clinicboost/go-common/mailer"
	_ "github.com/clinicboost/go-common/resilience"
)

func main() {
	fmt.Println("Hi")
}
