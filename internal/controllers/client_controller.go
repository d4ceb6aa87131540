package controllers

import (
	"net/http"

	"github.com/coffeepula/pos-api/internal/middleware"
	"github.com/coffeepula/pos-api/internal/models"
	"github.com/coffeepula/pos-api/internal/services"
	"github.com/gin-gonic/gin"
)

// ClientController registers POS terminals as OAuth clients
type ClientController struct {
	clientService services.ClientService
}

func NewClientController(clientService services.ClientService) *ClientController {
	return &ClientController{clientService: clientService}
}

// CreatedClientResponse includes the plain secret, shown only once
type CreatedClientResponse struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	Name         string `json:"name"`
	Scopes       string `json:"scopes"`
	GrantTypes   string `json:"grant_types"`
}

// CreateClient godoc
// @Summary Register a terminal
// @Description Create an OAuth2 client that acts for the authenticated staff account
// @Tags OAuth2 Clients
// @Accept json
// @Produce json
// @Param client body services.ClientInput true "Client details"
// @Success 201 {object} CreatedClientResponse
// @Failure 400 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/clients [post]
func (cc *ClientController) CreateClient(c *gin.Context) {
	var input services.ClientInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}

	client, secret, err := cc.clientService.CreateClient(c.Request.Context(), c.GetUint(middleware.UserIDKey), input)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, CreatedClientResponse{
		ClientID:     client.ID,
		ClientSecret: secret,
		Name:         client.Name,
		Scopes:       client.Scopes,
		GrantTypes:   client.GrantTypes,
	})
}

// ListClients godoc
// @Summary List terminals
// @Description Clients registered under the authenticated staff account
// @Tags OAuth2 Clients
// @Produce json
// @Success 200 {array} models.OAuthClient
// @Security BearerAuth
// @Router /api/v1/clients [get]
func (cc *ClientController) ListClients(c *gin.Context) {
	clients, err := cc.clientService.GetClientsByUserID(c.Request.Context(), c.GetUint(middleware.UserIDKey))
	if err != nil {
		respondError(c, err)
		return
	}
	if clients == nil {
		clients = []models.OAuthClient{}
	}
	c.JSON(http.StatusOK, clients)
}

// DeleteClient godoc
// @Summary Delete a terminal
// @Tags OAuth2 Clients
// @Param id path string true "Client ID"
// @Success 204 "Client deleted"
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/v1/clients/{id} [delete]
func (cc *ClientController) DeleteClient(c *gin.Context) {
	if err := cc.clientService.DeleteClient(c.Request.Context(), c.Param("id"), c.GetUint(middleware.UserIDKey)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
