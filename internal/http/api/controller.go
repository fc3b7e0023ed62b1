package api

import "github.com/gin-gonic/gin"

// Controller registers endpoints on one gin group, adapting handlers that
// return (result, error) into gin handlers.
type Controller struct {
	Group *gin.RouterGroup
}

func (c *Controller) GET(path string, h HandlerFuncWithActor) {
	c.Group.GET(path, ResolveEndpointWithActor(h))
}

func (c *Controller) POST(path string, h HandlerFuncWithActor) {
	c.Group.POST(path, ResolveEndpointWithActor(h))
}

func (c *Controller) PUT(path string, h HandlerFuncWithActor) {
	c.Group.PUT(path, ResolveEndpointWithActor(h))
}

func (c *Controller) DELETE(path string, h HandlerFuncWithActor) {
	c.Group.DELETE(path, ResolveEndpointWithActor(h))
}

// Raw registers a plain gin handler for endpoints that write their own
// response, such as HTML.
func (c *Controller) Raw(method, path string, h gin.HandlerFunc) {
	c.Group.Handle(method, path, h)
}
