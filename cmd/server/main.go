package main

import "kakachat/internal/app"

func main() {
	app.Run()
}
