/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package main

import "github.com/s4sahiko/Timetable-Sync-Pro/cmd"

func main() {
	cmd.Execute()
}
