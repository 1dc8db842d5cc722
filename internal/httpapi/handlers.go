package httpapi

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"drinkpos/backend/internal/domain"
	"drinkpos/backend/internal/promotion"
	"drinkpos/backend/internal/service"
)

func (a *API) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := a.service.ListCategories(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": categories})
}

func (a *API) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req domain.CategoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	category, err := a.service.CreateCategory(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"category": category})
}

func (a *API) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req domain.CategoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	category, err := a.service.UpdateCategory(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"category": category})
}

func (a *API) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteCategory(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleListDrinks(w http.ResponseWriter, r *http.Request) {
	drinks, err := a.service.ListDrinks(r.Context(), strings.TrimSpace(r.URL.Query().Get("category_id")))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"drinks": drinks})
}

func (a *API) handleGetDrink(w http.ResponseWriter, r *http.Request) {
	drink, err := a.service.GetDrink(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"drink": drink})
}

func (a *API) handleCreateDrink(w http.ResponseWriter, r *http.Request) {
	var req domain.DrinkRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	drink, err := a.service.CreateDrink(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"drink": drink})
}

func (a *API) handleUpdateDrink(w http.ResponseWriter, r *http.Request) {
	var req domain.DrinkRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	drink, err := a.service.UpdateDrink(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"drink": drink})
}

func (a *API) handleDeleteDrink(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteDrink(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleListIngredients(w http.ResponseWriter, r *http.Request) {
	ingredients, err := a.service.ListIngredients(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ingredients": ingredients})
}

func (a *API) handleGetIngredient(w http.ResponseWriter, r *http.Request) {
	ingredient, err := a.service.GetIngredient(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ingredient": ingredient})
}

func (a *API) handleCreateIngredient(w http.ResponseWriter, r *http.Request) {
	var req domain.IngredientCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	ingredient, err := a.service.CreateIngredient(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ingredient": ingredient})
}

func (a *API) handleUpdateIngredient(w http.ResponseWriter, r *http.Request) {
	var req domain.IngredientUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	ingredient, err := a.service.UpdateIngredient(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ingredient": ingredient})
}

func (a *API) handleDeleteIngredient(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteIngredient(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleRestock(w http.ResponseWriter, r *http.Request) {
	var req domain.RestockRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := a.service.Restock(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	resp, err := a.service.ListIngredientExpenses(r.Context(),
		q.Get("period"),
		q.Get("date"),
		parsePositiveLimit(q.Get("page"), 1, 0),
		parsePositiveLimit(q.Get("page_size"), 20, 200),
	)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleListIngredientTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	entries, err := a.service.ListIngredientTransactions(r.Context(), domain.IngredientTransactionFilter{
		IngredientID: strings.TrimSpace(q.Get("ingredient_id")),
		BillID:       strings.TrimSpace(q.Get("bill_id")),
		Limit:        parsePositiveLimit(q.Get("limit"), 100, 500),
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": entries})
}

func (a *API) handleListPromotions(w http.ResponseWriter, r *http.Request) {
	promotions, err := a.service.ListPromotions(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"promotions": promotions})
}

func (a *API) handleCreatePromotion(w http.ResponseWriter, r *http.Request) {
	var req domain.Promotion
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	promo, err := a.service.CreatePromotion(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"promotion": promo})
}

func (a *API) handleUpdatePromotion(w http.ResponseWriter, r *http.Request) {
	var req domain.Promotion
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	promo, err := a.service.UpdatePromotion(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"promotion": promo})
}

func (a *API) handleDeletePromotion(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeletePromotion(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleEvaluatePromotions(w http.ResponseWriter, r *http.Request) {
	var req domain.PromotionEvaluateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	qualified, err := a.service.EvaluatePromotions(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if qualified == nil {
		qualified = []promotion.Qualified{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"qualifying_promotions": qualified})
}

func (a *API) handleCreateBill(w http.ResponseWriter, r *http.Request) {
	var req domain.BillCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	bill, err := a.service.CreateBill(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"bill": bill})
}

func (a *API) handleListBills(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	resp, err := a.service.ListBills(r.Context(), service.BillQuery{
		Period:   q.Get("period"),
		Date:     q.Get("date"),
		UserID:   q.Get("user_id"),
		Page:     parsePositiveLimit(q.Get("page"), 1, 0),
		PageSize: parsePositiveLimit(q.Get("page_size"), 20, 200),
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleGetBill(w http.ResponseWriter, r *http.Request) {
	bill, err := a.service.GetBill(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bill": bill})
}

func (a *API) handleReplaceBill(w http.ResponseWriter, r *http.Request) {
	var req domain.BillReplaceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	bill, err := a.service.ReplaceBill(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bill": bill})
}

func (a *API) handleDeleteBill(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteBill(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleItemsSoldReport(w http.ResponseWriter, r *http.Request) {
	report, err := a.service.ItemsSoldReport(r.Context(), chi.URLParam(r, "period"), r.URL.Query().Get("date"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *API) handleRevenueReport(w http.ResponseWriter, r *http.Request) {
	report, err := a.service.RevenueReport(r.Context(), chi.URLParam(r, "period"), r.URL.Query().Get("date"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *API) handlePopularItemsReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	report, err := a.service.PopularItemsReport(r.Context(),
		chi.URLParam(r, "period"),
		q.Get("date"),
		parsePositiveLimit(q.Get("limit"), 10, 100),
	)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"users": a.auth.ListUsers(r.Context())})
}

func (a *API) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req domain.UserCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	user, err := a.auth.CreateUser(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"user": user})
}

func (a *API) handleListSchedules(w http.ResponseWriter, r *http.Request) {
	schedules, err := a.service.ListSchedules(r.Context(), strings.TrimSpace(r.URL.Query().Get("user_id")))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"schedules": schedules})
}

func (a *API) handleGetSchedule(w http.ResponseWriter, r *http.Request) {
	schedule, err := a.service.GetSchedule(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"schedule": schedule})
}

func (a *API) handleCreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req domain.WeekScheduleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	schedule, err := a.service.CreateSchedule(r.Context(), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"schedule": schedule})
}

func (a *API) handleUpdateSchedule(w http.ResponseWriter, r *http.Request) {
	var req domain.WeekScheduleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	schedule, err := a.service.UpdateSchedule(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"schedule": schedule})
}

func (a *API) handleDeleteSchedule(w http.ResponseWriter, r *http.Request) {
	if err := a.service.DeleteSchedule(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
