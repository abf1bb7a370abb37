// Package sms delivers operator alerts as text messages.
//
// Two providers are supported: Naver Cloud Platform SENS (signed
// requests, delivery-status polling) and Bizppurio (bearer-token flow).
// The provider is selected by configuration; everything above this
// package talks to the Sender interface only.
package sms
