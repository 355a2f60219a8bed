// Package httpapi is the JSON REST surface of the custody service. Handlers
// parse and validate at the boundary, call a service, and map domain errors
// to status codes. Authentication happens upstream; the authenticated
// organization arrives in the X-Org-ID header.
package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trackchain/custody-service/internal/catalog"
	"github.com/trackchain/custody-service/internal/checkpoint"
	"github.com/trackchain/custody-service/internal/custody"
	domainerrors "github.com/trackchain/custody-service/internal/domain/errors"
	"github.com/trackchain/custody-service/internal/models"
	"github.com/trackchain/custody-service/internal/planner"
	"github.com/trackchain/custody-service/pkg/logger"
	"github.com/trackchain/custody-service/pkg/metrics"
)

const orgHeader = "X-Org-ID"

type Server struct {
	checkpoints *checkpoint.Registry
	catalog     *catalog.Service
	planner     *planner.Planner
	custody     *custody.Machine
	metrics     *metrics.Metrics
	log         logger.Logger
}

func NewServer(cps *checkpoint.Registry, cat *catalog.Service, pl *planner.Planner,
	machine *custody.Machine, m *metrics.Metrics, log logger.Logger) *Server {
	return &Server{
		checkpoints: cps,
		catalog:     cat,
		planner:     pl,
		custody:     machine,
		metrics:     m,
		log:         log,
	}
}

// Routes wires every endpoint onto a ServeMux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/checkpoints", s.handleCreateCheckpoint)
	mux.HandleFunc("GET /api/checkpoints", s.handleListCheckpoints)
	mux.HandleFunc("GET /api/checkpoints/{id}", s.handleGetCheckpoint)

	mux.HandleFunc("POST /api/product-categories", s.handleCreateCategory)
	mux.HandleFunc("GET /api/product-categories", s.handleListCategories)
	mux.HandleFunc("POST /api/products", s.handleCreateProduct)
	mux.HandleFunc("GET /api/products", s.handleListProducts)
	mux.HandleFunc("POST /api/batches", s.handleCreateBatch)
	mux.HandleFunc("GET /api/batches", s.handleListBatches)
	mux.HandleFunc("GET /api/batches/{id}", s.handleGetBatch)
	mux.HandleFunc("GET /api/batches/{id}/packages", s.handleListBatchPackages)
	mux.HandleFunc("POST /api/packages", s.handleCreatePackage)
	mux.HandleFunc("GET /api/packages", s.handleListPackages)
	mux.HandleFunc("GET /api/packages/{id}", s.handleGetPackage)

	mux.HandleFunc("POST /api/shipments", s.handleCreateShipment)
	mux.HandleFunc("GET /api/shipments", s.handleListShipments)
	mux.HandleFunc("GET /api/shipments/{id}", s.handleGetShipment)
	mux.HandleFunc("PUT /api/shipments/{id}", s.handleUpdateShipment)

	mux.HandleFunc("GET /api/shipment-segments/pending", s.handleListPendingSegments)
	mux.HandleFunc("GET /api/shipment-segments/{id}", s.handleGetSegment)
	mux.HandleFunc("POST /api/shipment-segments/accept/{id}", s.handleAcceptSegment)
	mux.HandleFunc("POST /api/shipment-segments/takeover/{id}", s.handleTakeOverSegment)
	mux.HandleFunc("POST /api/shipment-segments/handover/{id}", s.handleHandoverSegment)
	mux.HandleFunc("POST /api/shipment-segments/reject/{id}", s.handleRejectSegment)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

// actorOrg extracts the authenticated organization from the request.
func actorOrg(r *http.Request) (uuid.UUID, error) {
	raw := r.Header.Get(orgHeader)
	if raw == "" {
		return uuid.Nil, fmt.Errorf("%w: missing %s header", domainerrors.ErrValidation, orgHeader)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s is not a valid uuid", domainerrors.ErrValidation, orgHeader)
	}
	return id, nil
}

func decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: malformed request body", domainerrors.ErrValidation)
	}
	return nil
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	return parseUUID(name, r.PathValue(name))
}

// optionalUUID parses a query parameter that may be absent.
func optionalUUID(r *http.Request, name string) (*uuid.UUID, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s is not a valid uuid", domainerrors.ErrValidation, name)
	}
	return &id, nil
}

// --- checkpoints ---

func (s *Server) handleCreateCheckpoint(w http.ResponseWriter, r *http.Request) {
	owner, err := actorOrg(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req createCheckpointRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	cp, err := s.checkpoints.Create(r.Context(), checkpoint.CreateCheckpointInput{
		Name:       req.Name,
		Address:    req.Address,
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
		Country:    req.Country,
		State:      req.State,
		City:       req.City,
		OwnerOrgID: owner,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toCheckpointResponse(cp))
}

func (s *Server) handleListCheckpoints(w http.ResponseWriter, r *http.Request) {
	ownerID, err := optionalUUID(r, "ownerUUID")
	if err != nil {
		s.writeError(w, err)
		return
	}
	var (
		cps []models.Checkpoint
	)
	if ownerID != nil {
		cps, err = s.checkpoints.ListByOwner(r.Context(), *ownerID)
	} else {
		cps, err = s.checkpoints.List(r.Context())
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]checkpointResponse, 0, len(cps))
	for _, cp := range cps {
		out = append(out, toCheckpointResponse(cp))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetCheckpoint(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.writeError(w, err)
		return
	}
	cp, err := s.checkpoints.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toCheckpointResponse(cp))
}

// --- catalog ---

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	cat, err := s.catalog.CreateCategory(r.Context(), req.Name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, categoryResponse{ID: cat.ID.String(), Name: cat.Name})
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.catalog.ListCategories(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]categoryResponse, 0, len(cats))
	for _, c := range cats {
		out = append(out, categoryResponse{ID: c.ID.String(), Name: c.Name})
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	categoryID, err := parseUUID("product_category_id", req.CategoryID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	product, err := s.catalog.CreateProduct(r.Context(), catalog.CreateProductInput{
		Name:                 req.Name,
		CategoryID:           categoryID,
		RequiredStartTemp:    req.RequiredStartTemp,
		RequiredEndTemp:      req.RequiredEndTemp,
		HandlingInstructions: req.HandlingInstructions,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toProductResponse(product))
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	categoryID, err := optionalUUID(r, "categoryUUID")
	if err != nil {
		s.writeError(w, err)
		return
	}
	products, err := s.catalog.ListProducts(r.Context(), categoryID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]productResponse, 0, len(products))
	for _, p := range products {
		out = append(out, toProductResponse(p))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateBatch(w http.ResponseWriter, r *http.Request) {
	manufacturer, err := actorOrg(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req createBatchRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	productID, err := parseUUID("product_uuid", req.ProductID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	productionStart, err := parseDate("production_start", req.ProductionStart)
	if err != nil {
		s.writeError(w, err)
		return
	}
	productionEnd, err := parseDate("production_end", req.ProductionEnd)
	if err != nil {
		s.writeError(w, err)
		return
	}
	expiry, err := parseDate("expiry_date", req.ExpiryDate)
	if err != nil {
		s.writeError(w, err)
		return
	}
	batch, err := s.catalog.CreateBatch(r.Context(), catalog.CreateBatchInput{
		ProductID:         productID,
		ManufacturerOrgID: manufacturer,
		Facility:          req.Facility,
		ProductionStart:   productionStart,
		ProductionEnd:     productionEnd,
		QuantityProduced:  req.QuantityProduced,
		ExpiryDate:        expiry,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toBatchResponse(batch))
}

func (s *Server) handleListBatches(w http.ResponseWriter, r *http.Request) {
	productID, err := optionalUUID(r, "productUUID")
	if err != nil {
		s.writeError(w, err)
		return
	}
	batches, err := s.catalog.ListBatches(r.Context(), productID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]batchResponse, 0, len(batches))
	for _, b := range batches {
		out = append(out, toBatchResponse(b))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.writeError(w, err)
		return
	}
	batch, err := s.catalog.GetBatch(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toBatchResponse(batch))
}

func (s *Server) handleListBatchPackages(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.writeError(w, err)
		return
	}
	// 404 for an unknown batch rather than an empty list.
	if _, err := s.catalog.GetBatch(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	packages, err := s.catalog.ListPackages(r.Context(), &id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]packageResponse, 0, len(packages))
	for _, p := range packages {
		out = append(out, toPackageResponse(p))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreatePackage(w http.ResponseWriter, r *http.Request) {
	var req createPackageRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	batchID, err := parseUUID("batch_id", req.BatchID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	pkg, err := s.catalog.CreatePackage(r.Context(), catalog.CreatePackageInput{
		BatchID:     batchID,
		PackageCode: req.PackageCode,
		Quantity:    req.Quantity,
		Unit:        req.Unit,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toPackageResponse(pkg))
}

func (s *Server) handleListPackages(w http.ResponseWriter, r *http.Request) {
	batchID, err := optionalUUID(r, "batchUUID")
	if err != nil {
		s.writeError(w, err)
		return
	}
	packages, err := s.catalog.ListPackages(r.Context(), batchID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]packageResponse, 0, len(packages))
	for _, p := range packages {
		out = append(out, toPackageResponse(p))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetPackage(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.writeError(w, err)
		return
	}
	pkg, err := s.catalog.GetPackage(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toPackageResponse(pkg))
}

// --- shipments ---

func (s *Server) handleCreateShipment(w http.ResponseWriter, r *http.Request) {
	var req createShipmentRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		s.writeError(w, err)
		return
	}
	shipment, err := s.planner.CreateShipment(r.Context(), in)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toShipmentResponse(shipment))
}

func (s *Server) handleListShipments(w http.ResponseWriter, r *http.Request) {
	manufacturerID, err := optionalUUID(r, "manufacturerUUID")
	if err != nil {
		s.writeError(w, err)
		return
	}
	cursor, err := optionalUUID(r, "cursor")
	if err != nil {
		s.writeError(w, err)
		return
	}
	status := models.ShipmentStatus(r.URL.Query().Get("status"))
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if _, err := fmt.Sscanf(raw, "%d", &limit); err != nil {
			s.writeError(w, fmt.Errorf("%w: limit is not an integer", domainerrors.ErrValidation))
			return
		}
	}

	shipments, err := s.planner.ListShipments(r.Context(), manufacturerID, status, cursor, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := shipmentListResponse{Shipments: make([]shipmentResponse, 0, len(shipments))}
	for _, sh := range shipments {
		out.Shipments = append(out.Shipments, toShipmentResponse(sh))
	}
	if len(shipments) > 0 {
		out.NextCursor = shipments[len(shipments)-1].ID.String()
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetShipment(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.writeError(w, err)
		return
	}
	shipment, err := s.planner.GetShipment(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toShipmentResponse(shipment))
}

func (s *Server) handleUpdateShipment(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req updateShipmentRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	in, err := req.toInput()
	if err != nil {
		s.writeError(w, err)
		return
	}
	shipment, err := s.planner.UpdateShipment(r.Context(), id, in)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toShipmentResponse(shipment))
}

// --- segments ---

func (s *Server) handleListPendingSegments(w http.ResponseWriter, r *http.Request) {
	ownerID, err := optionalUUID(r, "ownerUUID")
	if err != nil {
		s.writeError(w, err)
		return
	}
	var owner uuid.UUID
	if ownerID != nil {
		owner = *ownerID
	} else if owner, err = actorOrg(r); err != nil {
		s.writeError(w, err)
		return
	}

	pending, err := s.custody.ListPending(r.Context(), owner)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]pendingSegmentResponse, 0, len(pending))
	for _, p := range pending {
		out = append(out, pendingSegmentResponse{
			segmentResponse: toSegmentResponse(p.Segment),
			AreaCountry:     p.Area.Country,
			AreaState:       p.Area.State,
		})
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetSegment(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.writeError(w, err)
		return
	}
	seg, err := s.custody.GetSegment(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toSegmentResponse(seg))
}

func (s *Server) handleAcceptSegment(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.writeError(w, err)
		return
	}
	actor, err := actorOrg(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	shipment, err := s.custody.Accept(r.Context(), id, actor)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toShipmentResponse(shipment))
}

func (s *Server) handleTakeOverSegment(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.writeError(w, err)
		return
	}
	actor, err := actorOrg(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req geoPointRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	seg, err := s.custody.TakeOver(r.Context(), id, actor, models.GeoPoint{Latitude: req.Latitude, Longitude: req.Longitude})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toSegmentResponse(seg))
}

func (s *Server) handleHandoverSegment(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.writeError(w, err)
		return
	}
	actor, err := actorOrg(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req geoPointRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	seg, err := s.custody.Handover(r.Context(), id, actor, models.GeoPoint{Latitude: req.Latitude, Longitude: req.Longitude})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toSegmentResponse(seg))
}

func (s *Server) handleRejectSegment(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		s.writeError(w, err)
		return
	}
	actor, err := actorOrg(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req rejectRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	shipment, err := s.custody.Reject(r.Context(), id, actor, req.Reason)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toShipmentResponse(shipment))
}
