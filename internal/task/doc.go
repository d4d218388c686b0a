// Package task manages background job queuing, processing, and lifecycle.
// It provides mechanisms for asynchronous execution of document extraction
// so uploads never block HTTP request handling, and implements cooperative
// cancellation: a stop request revokes a queued job before it ever starts
// and cancels the context of a running one.
package task
