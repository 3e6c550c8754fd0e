package http

import (
	"github.com/labstack/echo/v4"
)

func v1Endpoint(
	UserHandler *UserHandler,
	ProgressHandler *ProgressHandler,
	AdminHandler *AdminHandler,
	PresenceHandler *PresenceHandler,
	jwtMiddleware echo.MiddlewareFunc,
	refreshMiddleware echo.MiddlewareFunc,
	adminMiddleware echo.MiddlewareFunc,
	requestIDMiddleware echo.MiddlewareFunc,
	traceLoggerMiddleware echo.MiddlewareFunc,
) *endpoint {
	return &endpoint{
		apiVersion:  "api/v1",
		middlewares: []echo.MiddlewareFunc{requestIDMiddleware, traceLoggerMiddleware},
		groups: []*apiGroup{
			{
				prefix: "/user",
				routes: []*route{
					{"POST", "/login", UserHandler.HandleSignIn, nil},
					{"PUT", "/sign-out", UserHandler.HandleSignOut, nil},
					{"POST", "/sign-up", UserHandler.HandleSignUp, nil},
					{"GET", "/exists", UserHandler.HandleUserExists, nil},
				},
			},
			{
				prefix:      "/progress",
				middlewares: []echo.MiddlewareFunc{jwtMiddleware, refreshMiddleware},
				routes: []*route{
					{"POST", "/track-heartbeat", ProgressHandler.HandleTrackHeartbeat, nil},
					{"GET", "/:courseId", ProgressHandler.HandleGetCourseProgress, nil},
					{"PUT", "/:courseId/complete", ProgressHandler.HandleCompleteLesson, nil},
				},
			},
			{
				prefix:      "/admin",
				middlewares: []echo.MiddlewareFunc{jwtMiddleware, refreshMiddleware, adminMiddleware},
				routes: []*route{
					{"GET", "/usage", AdminHandler.HandleGetUsage, nil},
				},
			},
			{
				prefix:      "/ws",
				middlewares: []echo.MiddlewareFunc{jwtMiddleware},
				routes: []*route{
					{"GET", "/presence", PresenceHandler.HandlePresence, nil},
				},
			},
		},
	}
}
