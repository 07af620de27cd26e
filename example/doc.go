/*
Package example contains demos of the Duo Universal Prompt client.

	app: login page, health check, redirect to the Duo Prompt and callback handling
	cli: command-line login serving the callback on a local address
*/
package example
