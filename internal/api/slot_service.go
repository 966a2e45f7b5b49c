package api

import (
	"context"
	"strings"
	"time"

	"slotbook/internal/domain"
	"slotbook/internal/models"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	slotServiceName    = "slotbook.slots.v1.SlotService"
	methodGetSlots     = "/" + slotServiceName + "/GetSlots"
	methodResolveHours = "/" + slotServiceName + "/ResolveHours"
	methodCheckSlot    = "/" + slotServiceName + "/CheckSlot"
)

type GetSlotsRequest struct {
	ServiceID int64  `json:"service_id"`
	Date      string `json:"date"`
}

type GetSlotsResponse struct {
	ServiceID int64    `json:"service_id"`
	Date      string   `json:"date"`
	Slots     []string `json:"slots"`
}

type ResolveHoursRequest struct {
	BusinessID int64  `json:"business_id"`
	Date       string `json:"date"`
}

type ResolveHoursResponse struct {
	BusinessID           int64  `json:"business_id"`
	Date                 string `json:"date"`
	Weekday              int    `json:"weekday"`
	Closed               bool   `json:"closed"`
	OpenTime             string `json:"open_time,omitempty"`
	CloseTime            string `json:"close_time,omitempty"`
	MaxConcurrentPerSlot int    `json:"max_concurrent_per_slot,omitempty"`
}

type CheckSlotRequest struct {
	ServiceID int64 `json:"service_id"`
	// Start is YYYY-MM-DDTHH:MM on the business wall clock.
	Start string `json:"start"`
}

type CheckSlotResponse struct {
	ServiceID int64  `json:"service_id"`
	Start     string `json:"start"`
	Available bool   `json:"available"`
}

type SlotServiceServer interface {
	GetSlots(ctx context.Context, req *GetSlotsRequest) (*GetSlotsResponse, error)
	ResolveHours(ctx context.Context, req *ResolveHoursRequest) (*ResolveHoursResponse, error)
	CheckSlot(ctx context.Context, req *CheckSlotRequest) (*CheckSlotResponse, error)
}

// SlotService answers availability reads over gRPC.
type SlotService struct {
	bookings domain.BookingService
	logger   *zerolog.Logger
}

func NewSlotService(bookings domain.BookingService, logger *zerolog.Logger) *SlotService {
	return &SlotService{bookings: bookings, logger: logger}
}

func (s *SlotService) GetSlots(ctx context.Context, req *GetSlotsRequest) (*GetSlotsResponse, error) {
	if req.ServiceID <= 0 {
		return nil, status.Error(codes.InvalidArgument, "service_id is required")
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	slots, err := s.bookings.GetAvailableSlots(ctx, req.ServiceID, date)
	if err != nil {
		return nil, s.grpcError(err)
	}
	return &GetSlotsResponse{
		ServiceID: req.ServiceID,
		Date:      date.Format(models.DateLayout),
		Slots:     slots,
	}, nil
}

func (s *SlotService) ResolveHours(ctx context.Context, req *ResolveHoursRequest) (*ResolveHoursResponse, error) {
	if req.BusinessID <= 0 {
		return nil, status.Error(codes.InvalidArgument, "business_id is required")
	}
	date, err := parseDate(req.Date)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	hours, err := s.bookings.ResolveHours(ctx, req.BusinessID, date)
	if err != nil {
		return nil, s.grpcError(err)
	}

	resp := &ResolveHoursResponse{
		BusinessID: req.BusinessID,
		Date:       date.Format(models.DateLayout),
		Weekday:    models.WeekdayOf(date),
		Closed:     hours == nil,
	}
	if hours != nil {
		resp.OpenTime = hours.OpenTime.String()
		resp.CloseTime = hours.CloseTime.String()
		resp.MaxConcurrentPerSlot = hours.MaxConcurrentPerSlot
	}
	return resp, nil
}

func (s *SlotService) CheckSlot(ctx context.Context, req *CheckSlotRequest) (*CheckSlotResponse, error) {
	if req.ServiceID <= 0 {
		return nil, status.Error(codes.InvalidArgument, "service_id is required")
	}
	start, err := time.Parse(models.DateTimeLayout, strings.TrimSpace(req.Start))
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid start; expected YYYY-MM-DDTHH:MM")
	}

	ok, err := s.bookings.CheckSlot(ctx, req.ServiceID, start)
	if err != nil {
		return nil, s.grpcError(err)
	}
	return &CheckSlotResponse{
		ServiceID: req.ServiceID,
		Start:     start.Format(models.DateTimeLayout),
		Available: ok,
	}, nil
}

func (s *SlotService) grpcError(err error) error {
	apiErr := classify(err)
	if apiErr.status >= 500 && s.logger != nil {
		s.logger.Error().Err(err).Msg("slot service failure")
	}
	return status.Error(apiErr.grpcCode, apiErr.message)
}

func RegisterSlotServiceServer(s grpc.ServiceRegistrar, srv SlotServiceServer) {
	s.RegisterService(&slotServiceDesc, srv)
}

var slotServiceDesc = grpc.ServiceDesc{
	ServiceName: slotServiceName,
	HandlerType: (*SlotServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetSlots", Handler: getSlotsHandler},
		{MethodName: "ResolveHours", Handler: resolveHoursHandler},
		{MethodName: "CheckSlot", Handler: checkSlotHandler},
	},
	Streams: []grpc.StreamDesc{},
}

func getSlotsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetSlotsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SlotServiceServer).GetSlots(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodGetSlots}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SlotServiceServer).GetSlots(ctx, req.(*GetSlotsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func resolveHoursHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ResolveHoursRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SlotServiceServer).ResolveHours(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodResolveHours}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SlotServiceServer).ResolveHours(ctx, req.(*ResolveHoursRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func checkSlotHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(CheckSlotRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SlotServiceServer).CheckSlot(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodCheckSlot}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(SlotServiceServer).CheckSlot(ctx, req.(*CheckSlotRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// SlotServiceClient calls the slot service with the JSON codec.
type SlotServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewSlotServiceClient(cc grpc.ClientConnInterface) *SlotServiceClient {
	return &SlotServiceClient{cc: cc}
}

func (c *SlotServiceClient) GetSlots(ctx context.Context, in *GetSlotsRequest, opts ...grpc.CallOption) (*GetSlotsResponse, error) {
	out := new(GetSlotsResponse)
	if err := c.cc.Invoke(ctx, methodGetSlots, in, out, withJSON(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *SlotServiceClient) ResolveHours(ctx context.Context, in *ResolveHoursRequest, opts ...grpc.CallOption) (*ResolveHoursResponse, error) {
	out := new(ResolveHoursResponse)
	if err := c.cc.Invoke(ctx, methodResolveHours, in, out, withJSON(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *SlotServiceClient) CheckSlot(ctx context.Context, in *CheckSlotRequest, opts ...grpc.CallOption) (*CheckSlotResponse, error) {
	out := new(CheckSlotResponse)
	if err := c.cc.Invoke(ctx, methodCheckSlot, in, out, withJSON(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func withJSON(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(jsonCodecName)}, opts...)
}
