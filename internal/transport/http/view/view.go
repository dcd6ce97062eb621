// Package view 页面的 JSON 描述，前端据此渲染。
package view

import "myduka-web/internal/domain"

const (
	KindPage     = "page"
	KindLoading  = "loading"
	KindNotFound = "not_found"
)

type Page struct {
	View  string                   `json:"view"`
	Path  string                   `json:"path"`
	Title string                   `json:"title,omitempty"`
	User  *domain.User             `json:"user,omitempty"`
	Nav   []domain.NavigationEntry `json:"nav,omitempty"`
	Data  any                      `json:"data,omitempty"`
}

func Loading(path string) Page { return Page{View: KindLoading, Path: path} }

func NotFound(path string) Page { return Page{View: KindNotFound, Path: path, Title: "Page not found"} }
