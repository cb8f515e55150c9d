package ledger

import (
	"bytes"
	"encoding/json"
	"net/url"
	"time"
)

type Role string

const (
	RoleUser       Role = "user"
	RoleAdminA     Role = "adminA"
	RoleAdminB     Role = "adminB"
	RoleSuperadmin Role = "superadmin"
	RoleGuest      Role = "guest"
)

// IsAdmin reports whether the role may decide on pending personal requests
// and record public expenses.
func (r Role) IsAdmin() bool {
	switch r {
	case RoleAdminA, RoleAdminB, RoleSuperadmin:
		return true
	default:
		return false
	}
}

func (r Role) CanRecordIncome() bool {
	return r == RoleSuperadmin
}

// CanManageUsers reports whether the role may list, create, edit and delete
// accounts.
func (r Role) CanManageUsers() bool {
	return r == RoleSuperadmin
}

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdminA, RoleAdminB, RoleSuperadmin, RoleGuest:
		return true
	default:
		return false
	}
}

type Status string

const (
	StatusDraft     Status = "draft"
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusApproved, StatusRejected, StatusCancelled:
		return true
	default:
		return false
	}
}

type User struct {
	ID          string `json:"_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`
	Email       string `json:"email,omitempty"`
	Role        Role   `json:"role"`
}

// Name is what lists show for a user: display name, else username.
func (u User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}

// UserRef is a reference the gateway sends either as a bare id or as a
// populated user object.
type UserRef struct {
	ID   string
	User *User
}

func (r *UserRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*r = UserRef{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*r = UserRef{ID: id}
		return nil
	}

	var raw struct {
		User
		AltID string `json:"id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	user := raw.User
	if user.ID == "" {
		user.ID = raw.AltID
	}
	*r = UserRef{ID: user.ID, User: &user}
	return nil
}

func (r UserRef) MarshalJSON() ([]byte, error) {
	if r.User != nil {
		return json.Marshal(r.User)
	}
	if r.ID == "" {
		return []byte("null"), nil
	}
	return json.Marshal(r.ID)
}

// Name returns the populated user's name, falling back to the id.
func (r UserRef) Name() string {
	if r.User != nil {
		if name := r.User.Name(); name != "" {
			return name
		}
	}
	return r.ID
}

type Category struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

// CategoryRef is either a category name or a populated category object.
type CategoryRef struct {
	ID   string
	Name string
}

func (r *CategoryRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*r = CategoryRef{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		*r = CategoryRef{Name: name}
		return nil
	}

	var category Category
	if err := json.Unmarshal(data, &category); err != nil {
		return err
	}
	*r = CategoryRef{ID: category.ID, Name: category.Name}
	return nil
}

func (r CategoryRef) MarshalJSON() ([]byte, error) {
	if r.ID == "" && r.Name == "" {
		return []byte("null"), nil
	}
	if r.ID == "" {
		return json.Marshal(r.Name)
	}
	return json.Marshal(Category{ID: r.ID, Name: r.Name})
}

type Income struct {
	ID         string    `json:"_id"`
	SourceName string    `json:"source_name"`
	Amount     float64   `json:"amount"`
	Currency   string    `json:"currency,omitempty"`
	Date       time.Time `json:"date"`
	CreatedBy  UserRef   `json:"created_by"`
	Note       string    `json:"note,omitempty"`
}

type PublicExpenseEntry struct {
	ID             string      `json:"_id"`
	Title          string      `json:"title"`
	Category       CategoryRef `json:"category"`
	AmountMin      *float64    `json:"amount_min,omitempty"`
	AmountAvg      *float64    `json:"amount_avg,omitempty"`
	AmountMax      *float64    `json:"amount_max,omitempty"`
	ActualAmount   *float64    `json:"actual_amount,omitempty"`
	ApprovedAmount *float64    `json:"approved_amount,omitempty"`
	Note           string      `json:"note,omitempty"`
	Date           time.Time   `json:"date"`
	CreatedBy      UserRef     `json:"created_by"`
	// SourcePersonalExpenseID links a materialized mirror back to the
	// personal request it was copied from.
	SourcePersonalExpenseID string `json:"source_personal_expense_id,omitempty"`
}

type Attachment struct {
	Filename     string `json:"filename"`
	OriginalName string `json:"originalname"`
	Mime         string `json:"mime"`
	Size         int64  `json:"size"`
	Path         string `json:"path"`
}

type PersonalExpenseRequest struct {
	ID                  string       `json:"_id"`
	Title               string       `json:"title"`
	Description         string       `json:"description,omitempty"`
	AmountMin           *float64     `json:"amount_min,omitempty"`
	AmountAvg           *float64     `json:"amount_avg,omitempty"`
	AmountMax           *float64     `json:"amount_max,omitempty"`
	RequestedAmount     *float64     `json:"requested_amount,omitempty"`
	ApprovedAmount      *float64     `json:"approved_amount,omitempty"`
	Status              Status       `json:"status"`
	StartDate           *time.Time   `json:"start_date,omitempty"`
	EndDate             *time.Time   `json:"end_date,omitempty"`
	Attachments         []Attachment `json:"attachments,omitempty"`
	User                UserRef      `json:"user"`
	ApprovalsCount      int          `json:"approvals_count"`
	RequiredAdminsCount int          `json:"required_admins_count"`
	CreatedAt           time.Time    `json:"createdAt"`
	UpdatedAt           time.Time    `json:"updatedAt"`
}

// OwnedBy reports whether userID is the owner of the request.
func (r PersonalExpenseRequest) OwnedBy(userID string) bool {
	return userID != "" && r.User.ID == userID
}

type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

type ApprovalRecord struct {
	ID             string    `json:"_id"`
	AdminUser      UserRef   `json:"admin_user"`
	Decision       Decision  `json:"decision"`
	Comment        string    `json:"comment,omitempty"`
	ApprovedAmount *float64  `json:"approved_amount,omitempty"`
	DecidedAt      time.Time `json:"decided_at"`
}

type Notification struct {
	ID        string    `json:"_id"`
	Message   string    `json:"message"`
	Type      string    `json:"type,omitempty"`
	Read      bool      `json:"read"`
	Link      string    `json:"link,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type RemainingReport struct {
	TotalIncome           float64 `json:"totalIncome"`
	TotalGlobalExpenses   float64 `json:"totalGlobalExpenses"`
	TotalPersonalApproved float64 `json:"totalPersonalApproved"`
	TotalExpenses         float64 `json:"totalExpenses"`
	Remaining             float64 `json:"remaining"`
}

// Range is an inclusive date range; zero bounds are open.
type Range struct {
	From time.Time
	To   time.Time
}

const dateLayout = "2006-01-02"

func (r Range) Values() url.Values {
	values := url.Values{}
	if !r.From.IsZero() {
		values.Set("from", r.From.Format(dateLayout))
	}
	if !r.To.IsZero() {
		values.Set("to", r.To.Format(dateLayout))
	}
	return values
}

// MonthRange returns the calendar month containing now.
func MonthRange(now time.Time) Range {
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	to := from.AddDate(0, 1, -1)
	return Range{From: from, To: to}
}

// ListFilter maps to the gateway's optional list query parameters. The
// gateway combines them with AND semantics.
type ListFilter struct {
	Status   Status
	From     time.Time
	To       time.Time
	Category string
	User     string
}

func (f ListFilter) Values() url.Values {
	values := Range{From: f.From, To: f.To}.Values()
	if f.Status != "" {
		values.Set("status", string(f.Status))
	}
	if f.Category != "" {
		values.Set("category", f.Category)
	}
	if f.User != "" {
		values.Set("user", f.User)
	}
	return values
}

func (f ListFilter) WithStatus(status Status) ListFilter {
	f.Status = status
	return f
}

func FilterForRange(r Range) ListFilter {
	return ListFilter{From: r.From, To: r.To}
}

type CreateIncomeInput struct {
	SourceName string    `json:"source_name" validate:"required"`
	Amount     float64   `json:"amount" validate:"gt=0"`
	Currency   string    `json:"currency,omitempty" validate:"omitempty,len=3"`
	Date       time.Time `json:"date"`
	Note       string    `json:"note,omitempty"`
}

type CreateExpenseInput struct {
	Title     string    `json:"title" validate:"required"`
	Category  string    `json:"category" validate:"required"`
	AmountMin *float64  `json:"amount_min" validate:"required"`
	AmountAvg *float64  `json:"amount_avg" validate:"required"`
	AmountMax *float64  `json:"amount_max" validate:"required"`
	Note      string    `json:"note,omitempty"`
	Date      time.Time `json:"date"`
}

type CreatePersonalExpenseInput struct {
	Title           string       `json:"title" validate:"required"`
	Description     string       `json:"description,omitempty"`
	AmountMin       *float64     `json:"amount_min" validate:"required"`
	AmountAvg       *float64     `json:"amount_avg" validate:"required"`
	AmountMax       *float64     `json:"amount_max" validate:"required"`
	RequestedAmount *float64     `json:"requested_amount,omitempty"`
	StartDate       *time.Time   `json:"start_date,omitempty"`
	EndDate         *time.Time   `json:"end_date,omitempty"`
	Attachments     []Attachment `json:"attachments,omitempty"`
}

// PersonalExpensePatch is an arbitrary field patch; nil fields are left
// untouched by the gateway.
type PersonalExpensePatch struct {
	Title           *string      `json:"title,omitempty"`
	Description     *string      `json:"description,omitempty"`
	AmountMin       *float64     `json:"amount_min,omitempty"`
	AmountAvg       *float64     `json:"amount_avg,omitempty"`
	AmountMax       *float64     `json:"amount_max,omitempty"`
	RequestedAmount *float64     `json:"requested_amount,omitempty"`
	StartDate       *time.Time   `json:"start_date,omitempty"`
	EndDate         *time.Time   `json:"end_date,omitempty"`
	Attachments     []Attachment `json:"attachments,omitempty"`
}

// DecisionPayload is the body the gateway expects on approve. ApprovedAmount
// is serialized as null on reject.
type DecisionPayload struct {
	Decision       Decision `json:"decision"`
	Comment        string   `json:"comment"`
	ApprovedAmount *float64 `json:"approved_amount"`
}

type Credentials struct {
	Username    string `json:"username" validate:"required"`
	Password    string `json:"password" validate:"required"`
	Email       string `json:"email,omitempty" validate:"omitempty,email"`
	DisplayName string `json:"display_name,omitempty"`
}

// CreateUserInput is what a superadmin sends to open an account. An empty
// role means RoleUser.
type CreateUserInput struct {
	Username    string `json:"username" validate:"required"`
	DisplayName string `json:"display_name,omitempty"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required"`
	Role        Role   `json:"role,omitempty" validate:"omitempty,oneof=user adminA adminB superadmin guest"`
}

// UserPatch carries only the account fields that changed. Password is set
// only when it is being reset.
type UserPatch struct {
	DisplayName *string `json:"display_name,omitempty"`
	Email       *string `json:"email,omitempty" validate:"omitempty,email"`
	Role        *Role   `json:"role,omitempty" validate:"omitempty,oneof=user adminA adminB superadmin guest"`
	Password    *string `json:"password,omitempty" validate:"omitempty,min=1"`
}

func (p UserPatch) Empty() bool {
	return p.DisplayName == nil && p.Email == nil && p.Role == nil && p.Password == nil
}
