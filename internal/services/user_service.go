package services

import (
	"context"
	"errors"
	"log"

	"StudioDesk/server/internal/db"
	"StudioDesk/server/internal/models"
	"StudioDesk/server/internal/utils"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
)

type UserService struct{}

func NewUserService() *UserService {
	return &UserService{}
}

func (us *UserService) CheckUserExists(ctx context.Context, username, email string) (bool, error) {
	query := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Select("COUNT(*)").
		From("users").
		Where(squirrel.Or{
			squirrel.Eq{"username": username},
			squirrel.Eq{"email": email},
		})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return false, err
	}

	var count int
	err = db.Pool.QueryRow(ctx, sqlStr, args...).Scan(&count)
	if err != nil {
		log.Printf("Error checking user existence: %v", err)
		return false, err
	}
	return count > 0, nil
}

func (us *UserService) CreateUser(ctx context.Context, user *models.User) (int, error) {
	passwordHash, err := utils.HashPassword(user.PasswordHash)
	if err != nil {
		log.Printf("Error hashing password: %v", err)
		return 0, err
	}

	query := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Insert("users").
		Columns("username", "email", "role", "password_hash", "created_at").
		Values(user.Username, user.Email, user.Role, passwordHash, squirrel.Expr("NOW()")).
		Suffix("RETURNING id")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return 0, err
	}

	var userID int
	err = db.Pool.QueryRow(ctx, sqlStr, args...).Scan(&userID)
	if err != nil {
		log.Printf("Error creating user: %v", err)
		return 0, err
	}

	log.Printf("User created with ID %d", userID)
	return userID, nil
}

func (us *UserService) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Select("id", "username", "email", "role", "password_hash", "created_at").
		From("users").
		Where(squirrel.Eq{"email": email})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return nil, err
	}

	var user models.User
	err = db.Pool.QueryRow(ctx, sqlStr, args...).
		Scan(&user.ID, &user.Username, &user.Email, &user.Role, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrUserNotFound
		}
		log.Printf("Error getting user by email %s: %v", email, err)
		return nil, err
	}
	return &user, nil
}

func (us *UserService) GetUserById(ctx context.Context, userID int) (*models.User, error) {
	query := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Select("id", "username", "email", "role", "password_hash", "created_at").
		From("users").
		Where(squirrel.Eq{"id": userID})

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return nil, err
	}

	var user models.User
	err = db.Pool.QueryRow(ctx, sqlStr, args...).
		Scan(&user.ID, &user.Username, &user.Email, &user.Role, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrUserNotFound
		}
		log.Printf("Error getting user by ID %d: %v", userID, err)
		return nil, err
	}
	return &user, nil
}

func (us *UserService) SearchUsers(ctx context.Context, term string) ([]models.User, error) {
	query := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Select("id", "username", "email", "role", "created_at").
		From("users").
		Where(squirrel.Or{
			squirrel.ILike{"username": "%" + term + "%"},
			squirrel.ILike{"email": "%" + term + "%"},
		}).
		OrderBy("username ASC").
		Limit(20)

	sqlStr, args, err := query.ToSql()
	if err != nil {
		log.Printf("Failed to build SQL query: %v", err)
		return nil, err
	}

	rows, err := db.Pool.Query(ctx, sqlStr, args...)
	if err != nil {
		log.Printf("Error searching users: %v", err)
		return nil, err
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var user models.User
		err := rows.Scan(&user.ID, &user.Username, &user.Email, &user.Role, &user.CreatedAt)
		if err != nil {
			log.Printf("Error scanning user row: %v", err)
			continue
		}
		users = append(users, user)
	}
	if rows.Err() != nil {
		log.Printf("Error after iterating rows: %v", rows.Err())
		return nil, rows.Err()
	}
	return users, nil
}
