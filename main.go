package main

import "replydesk/internal/app"

func main() {
	app.Main()
}
