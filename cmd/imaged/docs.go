package main

// General API documentation for swaggo. Run `swag init -g cmd/imaged/docs.go`
// to generate docs.
//
// @title           imaged API
// @version         1.0
// @description     HTTP API for interactive medical image loading and saving.
//
// @contact.name   imaged maintainers
// @contact.url    https://github.com/your-org/imaged
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
