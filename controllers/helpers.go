package controllers

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
)

// Context keys yang di-set oleh middlewares.AuthMiddleware.
const (
	CtxUserID    = "userID"
	CtxCompanyID = "companyID"
	CtxRole      = "role"
)

var errUnauthenticated = errors.New("unauthenticated")

func currentUser(c *gin.Context) (userID, companyID uint, err error) {
	userID = c.GetUint(CtxUserID)
	companyID = c.GetUint(CtxCompanyID)
	if userID == 0 {
		return 0, 0, errUnauthenticated
	}
	return userID, companyID, nil
}

func parseIDParam(c *gin.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid " + name)
	}
	return uint(id), nil
}
