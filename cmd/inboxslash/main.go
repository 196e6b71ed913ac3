package main

import (
	"github.com/sirupsen/logrus"

	"github.com/InboxSlash/inbox-slash/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		logrus.Fatalf("Application error: %v", err)
	}
}
