// Package httpapi binds the admin API to net/http.
//
// Routes are mounted on a ServeMux using method patterns. The same handlers
// serve other net/http routers by supplying a ParamFunc for path parameters.
package httpapi
