// Package main is the entry point for the MongoFlow service. The same binary
// runs as an AWS Lambda function or as a local HTTP server.
package main

func main() {
	Execute()
}
